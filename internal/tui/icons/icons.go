// ABOUTME: Icon system with Nerd Font detection and Unicode fallback
// ABOUTME: Provides consistent iconography across different terminal capabilities

package icons

import (
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"
)

var (
	useNerdFonts     bool
	nerdFontDetected sync.Once

	// stdoutIsTerminal is swapped in tests.
	stdoutIsTerminal = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
)

// Terminals that ship with Nerd Font glyphs, matched case-insensitively
// against TERM_PROGRAM and TERM.
var nerdFontTerminals = []string{"iterm.app", "wezterm", "kitty", "ghostty", "alacritty"}

// detectNerdFonts picks glyphs for this process. CARSHOP_NERD_FONTS wins when
// set. Output that is not a terminal gets the Unicode fallback so piped and
// logged text stays readable; on a terminal NERD_FONTS or a known terminal
// decides.
func detectNerdFonts() bool {
	if v, ok := envBool("CARSHOP_NERD_FONTS"); ok {
		return v
	}
	if !stdoutIsTerminal() {
		return false
	}
	if v, ok := envBool("NERD_FONTS"); ok {
		return v
	}
	id := strings.ToLower(os.Getenv("TERM_PROGRAM") + " " + os.Getenv("TERM"))
	return slices.ContainsFunc(nerdFontTerminals, func(t string) bool {
		return strings.Contains(id, t)
	})
}

// envBool reads key as a boolean. Unset or unparsable values report ok=false.
func envBool(key string) (value, ok bool) {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false, false
	}
	return v, true
}

// HasNerdFonts returns true if Nerd Fonts are available
func HasNerdFonts() bool {
	nerdFontDetected.Do(func() {
		useNerdFonts = detectNerdFonts()
	})
	return useNerdFonts
}

// Icon represents an icon with Nerd Font and Unicode fallback variants
type Icon struct {
	NerdFont string
	Fallback string
}

// String returns the appropriate icon based on font availability
func (i Icon) String() string {
	if HasNerdFonts() {
		return i.NerdFont
	}
	return i.Fallback
}

var (
	// Catalogue and cart
	Car   = Icon{"\U000F010B", "◆"} // nf-md-car
	Brand = Icon{"\U000F04F9", "▣"} // nf-md-tag
	Cart  = Icon{"\U000F0110", "▤"} // nf-md-cart
	Order = Icon{"\U000F0174", "▦"} // nf-md-clipboard_text
	Money = Icon{"\U000F0114", "$"} // nf-md-cash
	User  = Icon{"\U000F0004", "●"} // nf-md-account

	// Status indicators
	CheckOK  = Icon{"\uf058", "✓"}     // nf-fa-check_circle
	Warning  = Icon{"\uf071", "⚠"}     // nf-fa-warning
	Critical = Icon{"\uf057", "✗"}     // nf-fa-times_circle
	Info     = Icon{"\uf05a", "ℹ"}     // nf-fa-info_circle
	Pending  = Icon{"\U000F051F", "…"} // nf-md-timer_sand

	// Actions
	Increase = Icon{"\U000F0415", "+"} // nf-md-plus
	Decrease = Icon{"\U000F0374", "-"} // nf-md-minus
	Refresh  = Icon{"\U000F0450", "↻"} // nf-md-refresh
	Quit     = Icon{"\U000F05FC", "×"} // nf-md-exit_to_app
)
