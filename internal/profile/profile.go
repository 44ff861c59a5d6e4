// Package profile содержит данные карточки профиля и бегущей строки HUD
package profile

import (
	"encoding/base64"
	"fmt"
	"strings"

	"hud-telemetry-service/internal/models"
)

// TickerSeparator разделитель сообщений бегущей строки
const TickerSeparator = " • "

const avatarTemplate = `<svg xmlns='http://www.w3.org/2000/svg' width='240' height='240'>` +
	`<rect width='100%%' height='100%%' fill='#0f172a'/>` +
	`<text x='50%%' y='50%%' dominant-baseline='middle' text-anchor='middle' font-family='Arial' font-size='72' fill='#f97316'>%s</text>` +
	`</svg>`

// Default возвращает демонстрационный профиль
func Default() models.Profile {
	p := models.Profile{
		ID:        "EIRY-0007",
		Name:      "Eve Kim",
		DOB:       "07/26/1986",
		Residence: "1982 Gilford Rd",
		Education: []string{"Franklin High School '04", "Northwestern University '08"},
		Bio:       "Systems Engineer, AI & Spatial UX",
	}
	p.Avatar = Avatar(p.Name)
	return p
}

// Initials первые буквы первых двух слов имени
func Initials(name string) string {
	var b strings.Builder
	for i, part := range strings.Fields(name) {
		if i == 2 {
			break
		}
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return b.String()
}

// Avatar SVG-аватар с инициалами в виде data URL
func Avatar(name string) string {
	svg := fmt.Sprintf(avatarTemplate, Initials(name))
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

// DefaultMessages сообщения бегущей строки по умолчанию
func DefaultMessages() []string {
	return []string{
		"CREATOR OF SPACE PARANOIDS: PANIC CITY",
		"CEO OF ENCOM",
		"SYSTEM ALERT: 3 DEVICES OUT OF RANGE",
		"AI LAB: NEW QUANTUM SIMULATION READY",
	}
}

// NewTicker собирает бегущую строку; текст повторяется дважды для бесшовной прокрутки
func NewTicker(messages []string) models.Ticker {
	line := strings.Join(messages, TickerSeparator)
	marquee := ""
	if line != "" {
		marquee = line + TickerSeparator + line
	}
	return models.Ticker{
		Messages: append([]string(nil), messages...),
		Marquee:  marquee,
	}
}
