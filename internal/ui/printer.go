package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/antstride/internal/stride"
)

// Field is one line of a field box
type Field struct {
	Key   string
	Value string
	Known bool
}

// KnownField returns a field with a value.
func KnownField(key, value string) Field {
	return Field{Key: key, Value: value, Known: true}
}

func optionalField[T any](key string, o stride.Optional[T], format string) Field {
	v, ok := o.Get()
	if !ok {
		return Field{Key: key, Value: "unknown"}
	}
	return KnownField(key, fmt.Sprintf(format, v))
}

// SnapshotFields lists the decoder state in display order.
func SnapshotFields(snap stride.Snapshot) []Field {
	device := Field{Key: "Device", Value: "searching"}
	if id, ok := snap.Device.Get(); ok {
		device = KnownField("Device", id.String())
	}

	s := snap.State
	return []Field{
		device,
		optionalField("Stride count", s.StrideCount, "%d"),
		optionalField("Calories", s.Calories, "%d kcal"),
		optionalField("Hardware revision", s.HardwareRevision, "%d"),
		optionalField("Manufacturer ID", s.ManufacturerID, "%d"),
		optionalField("Model number", s.ModelNumber, "%d"),
		optionalField("Software revision", s.SoftwareRevision, "%d"),
		optionalField("Serial number", s.SerialNumber, "%d"),
	}
}

// RenderFields renders a titled box of fields
func RenderFields(title, subtitle string, fields []Field, width int) string {
	width = clampWidth(width)

	lines := []string{TitleStyle.Render(strings.ToUpper(title))}
	if subtitle != "" {
		lines = append(lines, SubtitleStyle.Render(subtitle))
	}
	lines = append(lines, RenderHorizontalDivider(width-6, "─"))

	for _, f := range fields {
		value := UnknownStyle.Render(f.Value)
		if f.Known {
			value = ValueStyle.Render(f.Value)
		}
		lines = append(lines, KeyStyle.Render(f.Key+":")+" "+value)
	}

	return BoxStyle(width, PrimaryColor).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderError renders an error box with troubleshooting tips
func RenderError(title string, err error, tips []string, width int) string {
	width = clampWidth(width)

	lines := []string{"", ErrorTitleStyle.Render(FailureMarker + "  " + title), ""}
	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render("Error: "+err.Error()), "")
	}
	for _, tip := range tips {
		lines = append(lines, HintStyle.Render("  • "+tip))
	}
	if len(tips) > 0 {
		lines = append(lines, "")
	}

	return ErrorBoxStyle(width).Render(strings.Join(lines, "\n"))
}

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// PrintFields prints a field box
func (p *Printer) PrintFields(title, subtitle string, fields []Field) {
	p.Println(RenderFields(title, subtitle, fields, p.width))
}

// PrintSnapshot prints the decoder state
func (p *Printer) PrintSnapshot(title string, snap stride.Snapshot) {
	subtitle := SearchingStyle.Render("searching")
	if snap.Paired() {
		subtitle = PairedStyle.Render(SuccessMarker + " paired")
	}
	p.PrintFields(title, subtitle, SnapshotFields(snap))
}

// PrintEvent prints a one-line event
func (p *Printer) PrintEvent(format string, args ...interface{}) {
	p.Println(SubtitleStyle.Render(EventMarker) + " " + fmt.Sprintf(format, args...))
}

// PrintError prints an error box
func (p *Printer) PrintError(title string, err error, tips []string) {
	p.Println(RenderError(title, err, tips, p.width))
}
