package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/notesync/internal/common"
)

// DefaultAutoSyncInterval applies when settings carry no interval.
const DefaultAutoSyncInterval = 300 * time.Second

type NotificationSettings struct {
	Enabled      bool   `json:"enabled"`
	Sound        bool   `json:"sound"`
	Vibration    bool   `json:"vibration"`
	ReminderTime string `json:"reminder_time,omitempty"`
}

type DisplaySettings struct {
	Theme       string `json:"theme,omitempty"`
	FontSize    int    `json:"font_size,omitempty"`
	ShowPreview bool   `json:"show_preview"`
	CompactMode bool   `json:"compact_mode"`
}

type DeveloperOptions struct {
	DebugLogging bool `json:"debug_logging"`
	ShowSyncLogs bool `json:"show_sync_logs"`
}

// UserSettings is the single settings record of a user. Every top-level
// field is optional; nil means "not set on this replica".
type UserSettings struct {
	UserID           string                `json:"user_id,omitempty"`
	Notifications    *NotificationSettings `json:"notifications,omitempty"`
	Display          *DisplaySettings      `json:"display,omitempty"`
	DeveloperOptions *DeveloperOptions     `json:"developer_options,omitempty"`
	SyncEnabled      *bool                 `json:"sync_enabled,omitempty"`
	AutoSyncInterval *int                  `json:"auto_sync_interval,omitempty"`
	UpdatedAt        Timestamp             `json:"updated_at"`
}

// DefaultSettings is what a fresh install starts with. Sync stays off until
// the user enables it.
func DefaultSettings() UserSettings {
	return UserSettings{
		Notifications:    &NotificationSettings{Enabled: true, Sound: true},
		Display:          &DisplaySettings{Theme: "system", FontSize: 14, ShowPreview: true},
		DeveloperOptions: &DeveloperOptions{},
		SyncEnabled:      ptr(false),
		AutoSyncInterval: ptr(int(DefaultAutoSyncInterval / time.Second)),
		UpdatedAt:        Now(),
	}
}

func (s *UserSettings) SyncIsEnabled() bool {
	return s != nil && s.SyncEnabled != nil && *s.SyncEnabled
}

// AutoSyncEvery returns the configured interval or DefaultAutoSyncInterval.
func (s *UserSettings) AutoSyncEvery() time.Duration {
	if s == nil || s.AutoSyncInterval == nil || *s.AutoSyncInterval <= 0 {
		return DefaultAutoSyncInterval
	}
	return time.Duration(*s.AutoSyncInterval) * time.Second
}

// MergeSettings overlays remote onto local field by field: a field present on
// the remote record wins, otherwise the local value is kept. Sub-objects are
// replaced as a whole. Neither argument is modified.
func MergeSettings(local, remote *UserSettings) *UserSettings {
	var out UserSettings
	if local != nil {
		out = *local
	}
	if remote == nil {
		return &out
	}
	if remote.UserID != "" {
		out.UserID = remote.UserID
	}
	if remote.Notifications != nil {
		v := *remote.Notifications
		out.Notifications = &v
	}
	if remote.Display != nil {
		v := *remote.Display
		out.Display = &v
	}
	if remote.DeveloperOptions != nil {
		v := *remote.DeveloperOptions
		out.DeveloperOptions = &v
	}
	if remote.SyncEnabled != nil {
		out.SyncEnabled = ptr(*remote.SyncEnabled)
	}
	if remote.AutoSyncInterval != nil {
		out.AutoSyncInterval = ptr(*remote.AutoSyncInterval)
	}
	if !remote.UpdatedAt.IsZero() {
		out.UpdatedAt = remote.UpdatedAt
	}
	return &out
}

// SettingKeys lists the dotted names accepted by Set.
var SettingKeys = []string{
	"sync_enabled",
	"auto_sync_interval",
	"notifications.enabled",
	"notifications.sound",
	"notifications.vibration",
	"notifications.reminder_time",
	"display.theme",
	"display.font_size",
	"display.show_preview",
	"display.compact_mode",
	"developer_options.debug_logging",
	"developer_options.show_sync_logs",
}

// Set assigns a single setting from its textual form, e.g.
// Set("display.theme", "dark"). Missing sub-objects are created.
func (s *UserSettings) Set(key, value string) error {
	group, field, _ := strings.Cut(key, ".")

	switch group {
	case "sync_enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.SyncEnabled = &b
		return nil
	case "auto_sync_interval":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s: want a positive number of seconds, got %q", key, value)
		}
		s.AutoSyncInterval = &n
		return nil
	case "notifications":
		if s.Notifications == nil {
			s.Notifications = &NotificationSettings{}
		}
		switch field {
		case "enabled":
			return setBool(&s.Notifications.Enabled, key, value)
		case "sound":
			return setBool(&s.Notifications.Sound, key, value)
		case "vibration":
			return setBool(&s.Notifications.Vibration, key, value)
		case "reminder_time":
			s.Notifications.ReminderTime = value
			return nil
		}
	case "display":
		if s.Display == nil {
			s.Display = &DisplaySettings{}
		}
		switch field {
		case "theme":
			s.Display.Theme = value
			return nil
		case "font_size":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			s.Display.FontSize = n
			return nil
		case "show_preview":
			return setBool(&s.Display.ShowPreview, key, value)
		case "compact_mode":
			return setBool(&s.Display.CompactMode, key, value)
		}
	case "developer_options":
		if s.DeveloperOptions == nil {
			s.DeveloperOptions = &DeveloperOptions{}
		}
		switch field {
		case "debug_logging":
			return setBool(&s.DeveloperOptions.DebugLogging, key, value)
		case "show_sync_logs":
			return setBool(&s.DeveloperOptions.ShowSyncLogs, key, value)
		}
	}
	return fmt.Errorf("%w: %s", common.ErrUnknownSetting, key)
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func ptr[T any](v T) *T { return &v }
