package config

import "encoding/json"

// SummarizeChange reports which top-level sections differ between two
// configs. It deliberately compares marshaled section content rather than
// walking fields, so adding a field never silently escapes the summary.
// Values are never included (the telegram token must not reach logs).
func SummarizeChange(old, new *Config) []string {
	if old == nil || new == nil {
		return nil
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"logging", old.Logging, new.Logging},
		{"shutdown", old.Shutdown, new.Shutdown},
		{"telegram", old.Telegram, new.Telegram},
		{"storage", old.Storage, new.Storage},
		{"history", old.History, new.History},
		{"tick_interval", old.TickInterval, new.TickInterval},
	}

	var changed []string
	for _, s := range sections {
		if sectionHash(s.old) != sectionHash(s.new) {
			changed = append(changed, s.name)
		}
	}
	return changed
}

func sectionHash(v any) uint64 {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}
