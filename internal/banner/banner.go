package banner

import (
	"proxyload/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
    ____                       __                __
   / __ \_________  _  ____  _/ /   ____  ____ _/ /
  / /_/ / ___/ __ \| |/_/ / / / /   / __ \/ __ '/ /
 / ____/ /  / /_/ />  </ /_/ / /___/ /_/ / /_/ / /
/_/   /_/   \____/_/|_|\__, /_____/\____/\__,_/_/
                      /____/                        `

	return "\n" + style.Render(ascii) + "\n"
}
