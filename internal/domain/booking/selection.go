package booking

import (
	"strings"
	"time"
)

// OfferedSlot is a class the schedule page lists for the target day.
// Index is its position on the page.
type OfferedSlot struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Time  string `json:"time"`
}

// ChooseSlot returns the first offered slot that matches the wanted slots in
// order. Names match case-insensitively, times at minute granularity. When
// the page lists the same class twice the lower index wins.
func ChooseSlot(wanted []ClassSlot, offered []OfferedSlot) (OfferedSlot, bool) {
	if len(wanted) == 0 || len(offered) == 0 {
		return OfferedSlot{}, false
	}

	m := make(map[string]OfferedSlot, len(offered))
	for _, o := range offered {
		k := slotKey(o.Name, o.Time)
		if existing, ok := m[k]; ok && existing.Index <= o.Index {
			continue
		}
		m[k] = o
	}
	for _, w := range wanted {
		if o, ok := m[slotKey(w.Name, w.Time)]; ok {
			return o, true
		}
	}
	return OfferedSlot{}, false
}

func slotKey(name, t string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "@" + NormalizeTime(t)
}

// NormalizeTime trims "18:00:00" and " 8:05 " style values to HH:MM.
// Values that do not look like a time are returned trimmed.
func NormalizeTime(t string) string {
	t = strings.TrimSpace(t)
	parts := strings.Split(t, ":")
	if len(parts) < 2 {
		return t
	}
	h, m := parts[0], parts[1]
	if len(h) == 1 {
		h = "0" + h
	}
	if len(h) != 2 || len(m) != 2 {
		return t
	}
	return h + ":" + m
}

func weekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}
