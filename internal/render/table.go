package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/ankurauti1234/Events-Dashboard/internal/dashboard"
	"github.com/ankurauti1234/Events-Dashboard/internal/timezone"
	"github.com/ankurauti1234/Events-Dashboard/pkg/models"
)

// ChannelChangeMarker flags CHANNEL_CHANGED rows in the events table.
const ChannelChangeMarker = ">"

// JSON writes v indented, the format of every --json output.
func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

// Events prints an event log. Channel changes get a marker in the first column.
func Events(w io.Writer, events []models.Event, zone string) {
	data := make([][]string, 0, len(events))
	for _, e := range events {
		mark := ""
		if e.IsChannelChange() {
			mark = ChannelChangeMarker
		}
		data = append(data, []string{
			mark,
			timezone.Format(e.TS.Time, zone),
			string(e.DeviceID),
			e.EventName,
			e.DetailsText(),
		})
	}

	table := newTable(w, []string{"", "Time", "Device", "Event", "Details"})
	table.AppendBulk(data)
	table.Render()
}

// Detections prints logo or audio detections. Logo rows carry the accuracy
// and its tier.
func Detections(w io.Writer, events []models.Event, kind Kind, zone string) {
	headers := []string{"Time", "Channel"}
	if kind == KindLogo {
		headers = append(headers, "Accuracy", "Tier")
	}

	data := make([][]string, 0, len(events))
	for _, e := range events {
		row := []string{timezone.Format(e.TS.Time, zone)}
		if kind == KindLogo {
			d, err := e.Logo()
			if err != nil {
				row = append(row, "-", "-", "-")
			} else {
				row = append(row, d.ChannelID, dashboard.Percent(d.Accuracy), dashboard.Tier(d.Accuracy))
			}
		} else {
			d, _ := e.Audio()
			row = append(row, dash(d.ChannelID))
		}
		data = append(data, row)
	}

	table := newTable(w, headers)
	table.AppendBulk(data)
	table.Render()
}

// Members prints the watching state of each household member.
func Members(w io.Writer, members []models.Member) {
	data := make([][]string, 0, len(members))
	for _, m := range members {
		state := "Not watching"
		if m.Active {
			state = "Watching"
		}
		data = append(data, []string{
			fmt.Sprintf("Member %d", m.Index),
			state,
			m.Gender,
			strconv.Itoa(m.Age),
		})
	}

	table := newTable(w, []string{"Member", "State", "Gender", "Age"})
	table.AppendBulk(data)
	table.Render()
}

// Pager prints the "page x of y" footer when the table spans several pages.
func Pager(w io.Writer, p dashboard.Pager) {
	if !p.Visible() {
		return
	}
	fmt.Fprintf(w, "Page %d of %d (%d total)\n", p.Page, p.TotalPages(), p.Total)
}

// Device prints every panel of a device snapshot.
func Device(w io.Writer, snap dashboard.DeviceSnapshot, zone string) {
	fmt.Fprintf(w, "Device %s\n", snap.DeviceID)
	fmt.Fprintf(w, "Last updated: %s\n\n", timezone.Format(snap.FetchedAt, zone))

	fmt.Fprintln(w, "Logo detections")
	Detections(w, snap.Logo, KindLogo, zone)
	Pager(w, snap.LogoPager)

	fmt.Fprintln(w, "\nAudio fingerprints")
	Detections(w, snap.Audio, KindAudio, zone)
	Pager(w, snap.AudioPager)

	fmt.Fprintln(w, "\nMember watching state")
	if len(snap.Members) == 0 {
		fmt.Fprintln(w, "No member data.")
	} else {
		Members(w, snap.Members)
	}

	fmt.Fprintln(w)
	Shutdown(w, snap.Shutdown, zone)
}

// Shutdown prints the last shutdown line.
func Shutdown(w io.Writer, e *models.Event, zone string) {
	if e == nil {
		fmt.Fprintln(w, "Last shutdown: Never")
		return
	}
	line := "Last shutdown: " + timezone.Format(e.TS.Time, zone)
	if details := e.DetailsText(); details != "" {
		line += " (" + details + ")"
	}
	fmt.Fprintln(w, line)
}

// Stats prints the events page summary: totals, last sync and refresh state.
func Stats(w io.Writer, snap dashboard.EventsSnapshot, zone string, autoRefresh bool) {
	state := "off"
	if autoRefresh {
		state = "on"
	}
	fmt.Fprintf(w, "Total events: %d | Last sync: %s | Auto-refresh: %s\n",
		snap.Pager.Total, timezone.Format(snap.FetchedAt, zone), state)
	if snap.Query.DeviceID != "" {
		Shutdown(w, snap.Shutdown, zone)
	}
}

// Fleet prints the charts page as text.
func Fleet(w io.Writer, snap dashboard.FleetSnapshot, topChannels int) {
	summary := newTable(w, []string{"Metric", "Value"})
	summary.AppendBulk([][]string{
		{"Total devices", strconv.Itoa(snap.TotalDevices)},
		{"Total events", strconv.Itoa(snap.TotalEvents)},
		{"Most active channel", fmt.Sprintf("%s (%d)", snap.MostActiveChannel.ChannelID, snap.MostActiveChannel.Count)},
		{"Logo detections lead", fmt.Sprintf("%d%%", snap.LogoLeadPercent)},
		{"TV detections lead", fmt.Sprintf("%d%%", snap.TVLeadPercent)},
	})
	summary.Render()

	fmt.Fprintln(w, "\nEvent distribution")
	shares(w, snap.Distribution)

	fmt.Fprintln(w, "\nLogo detection types")
	shares(w, snap.DetectionTypes)

	fmt.Fprintln(w, "\nChannels")
	data := [][]string{}
	for _, ch := range snap.TopChannels(topChannels) {
		data = append(data, []string{ch.ChannelID, strconv.Itoa(ch.Count)})
	}
	channels := newTable(w, []string{"Channel", "Detections"})
	channels.AppendBulk(data)
	channels.Render()
}

func shares(w io.Writer, items []dashboard.Share) {
	data := make([][]string, 0, len(items))
	for _, s := range items {
		data = append(data, []string{s.Name, strconv.Itoa(s.Count), fmt.Sprintf("%.1f%%", s.Percent), bar(s.Percent)})
	}
	table := newTable(w, []string{"Name", "Count", "Share", ""})
	table.AppendBulk(data)
	table.Render()
}

// bar draws a 20 cell horizontal bar for a percentage.
func bar(percent float64) string {
	n := int(percent/5 + 0.5)
	if n < 0 {
		n = 0
	}
	if n > 20 {
		n = 20
	}
	return strings.Repeat("#", n)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
