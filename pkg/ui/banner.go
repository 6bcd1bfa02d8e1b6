package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/waftester/desyncsim/pkg/defaults"
)

// Global UI state
var (
	silentMode  bool
	noColorMode bool
	out         io.Writer = os.Stderr
	uiMu        sync.RWMutex
)

// SetSilent enables or disables silent mode (suppresses informational output)
func SetSilent(silent bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	silentMode = silent
}

// IsSilent returns whether silent mode is enabled
func IsSilent() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return silentMode
}

// SetNoColor disables colored output
func SetNoColor(noColor bool) {
	uiMu.Lock()
	defer uiMu.Unlock()
	noColorMode = noColor
	if noColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsNoColor returns whether color is disabled
func IsNoColor() bool {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return noColorMode
}

// SetOutput redirects status output and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	uiMu.Lock()
	defer uiMu.Unlock()
	prev := out
	out = w
	return prev
}

func writer() io.Writer {
	uiMu.RLock()
	defer uiMu.RUnlock()
	return out
}

const bannerArt = `
     __                            _
 ___/ /__ ___ __ _____  ____ ___  (_)_ _
/ _  / -_|_-</ // / _ \/ __/(_-< / /  ' \
\_,_/\__/___/\_, /_//_/\__//___//_/_/_/_/
            /___/
`

const bannerSeparator = "________________________________________________"

// PrintBanner prints the application banner with version info
func PrintBanner() {
	w := writer()
	for _, line := range strings.Split(bannerArt, "\n") {
		if line != "" {
			fmt.Fprintln(w, BannerStyle.Render(line))
		}
	}
	fmt.Fprintf(w, "                  v%s\n\n", VersionStyle.Render(defaults.Version))
}

// PrintDivider prints a stylized divider
func PrintDivider() {
	fmt.Fprintln(writer(), DividerStyle.Render(strings.Repeat("-", 75)))
}

// PrintSection prints a section header
func PrintSection(title string) {
	if IsSilent() {
		return
	}
	w := writer()
	fmt.Fprintln(w)
	fmt.Fprintln(w, SectionStyle.Render("> "+title))
	PrintDivider()
}

// PrintConfigLine prints a single config line
func PrintConfigLine(key, value string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s\n",
		ConfigLabelStyle.Render(key+":"),
		ConfigValueStyle.Render(value),
	)
}

// PrintConfigBanner prints options in ffuf style, in the order given by keys.
func PrintConfigBanner(keys []string, options map[string]string) {
	if IsSilent() {
		return
	}
	w := writer()
	for _, name := range keys {
		if value := options[name]; value != "" {
			fmt.Fprintf(w, " :: %-20s : %s\n", ConfigLabelStyle.Render(name), ConfigValueStyle.Render(value))
		}
	}
	fmt.Fprintf(w, "%s\n\n", DividerStyle.Render(bannerSeparator))
}

// BracketPart represents a piece of bracketed output
type BracketPart struct {
	Text  string
	Style lipgloss.Style
}

// Bracketed renders nuclei-style [a] [b] [c] segments.
func Bracketed(parts ...BracketPart) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(BracketStyle.Render("["))
		b.WriteString(part.Style.Render(part.Text))
		b.WriteString(BracketStyle.Render("]"))
	}
	return b.String()
}

func SeverityBracket(severity string) BracketPart {
	return BracketPart{Text: strings.ToLower(severity), Style: SeverityStyle(severity)}
}

func CategoryBracket(category string) BracketPart {
	return BracketPart{Text: category, Style: CategoryStyle}
}

func HopBracket(hop string) BracketPart {
	return BracketPart{Text: hop, Style: HopStyle}
}

func MutedBracket(text string) BracketPart {
	return BracketPart{Text: text, Style: lipgloss.NewStyle().Foreground(Muted)}
}

// PrintHelp prints contextual help
func PrintHelp(text string) {
	fmt.Fprintln(writer(), HelpStyle.Render("  [i] "+text))
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(writer(), PassStyle.Render("  [+] "+message))
}

// PrintError prints an error message. Errors are shown even in silent mode.
func PrintError(message string) {
	fmt.Fprintln(writer(), FailStyle.Render("  [X] "+message))
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintln(writer(), WarnStyle.Render("  [!] "+message))
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	if IsSilent() {
		return
	}
	fmt.Fprintf(writer(), "  %s %s\n", BannerStyle.Render("*"), message)
}
