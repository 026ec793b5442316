package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tbourn/forumdesk/internal/domain"
)

// ErrInvalidSetting is returned when a key is unknown or its value is
// malformed. The stored value is left untouched.
var ErrInvalidSetting = errors.New("invalid setting")

// Normalize validates value for key and returns the canonical form to store.
func Normalize(key, value string) (string, error) {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch {
	case key == KeyChatMode:
		m, err := domain.ParseChatMode(value)
		if err != nil {
			return "", invalid(key, err)
		}
		return string(m), nil
	case key == KeyReplyMode:
		m, err := domain.ParseReplyMode(value)
		if err != nil {
			return "", invalid(key, err)
		}
		return string(m), nil
	case key == KeyBanPolicy:
		p, err := domain.ParseBanPolicy(value)
		if err != nil {
			return "", invalid(key, err)
		}
		return string(p), nil
	case key == KeyCooldown:
		d, err := ParseDuration(value)
		if err != nil {
			return "", invalid(key, err)
		}
		return FormatDuration(d), nil
	case key == KeyStateTimeout:
		d, err := ParseDuration(value)
		if err != nil {
			return "", invalid(key, err)
		}
		if d <= 0 {
			return "", invalid(key, fmt.Errorf("%w: must be positive", ErrInvalidDuration))
		}
		return FormatDuration(d), nil
	case key == KeyTargetChat:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || id == 0 {
			return "", invalid(key, fmt.Errorf("chat id %q", value))
		}
		return strconv.FormatInt(id, 10), nil
	case key == KeySingleThread:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", invalid(key, fmt.Errorf("thread id %q", value))
		}
		return strconv.Itoa(n), nil
	case strings.HasPrefix(key, TextPrefix):
		if strings.TrimPrefix(key, TextPrefix) == "" || value == "" {
			return "", invalid(key, errors.New("empty text"))
		}
		return value, nil
	case strings.HasPrefix(key, EmojiPrefix):
		if _, err := domain.ParseCategory(strings.TrimPrefix(key, EmojiPrefix)); err != nil {
			return "", invalid(key, err)
		}
		return value, nil
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
}

func invalid(key string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidSetting, key, cause)
}

// build folds stored rows over the defaults. Rows that no longer validate
// are skipped and returned as errors.
func build(rows map[string]string) (*Snapshot, []error) {
	s := Defaults()
	var bad []error
	for k, raw := range rows {
		v, err := Normalize(k, raw)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		switch {
		case k == KeyChatMode:
			s.ChatMode = domain.ChatMode(v)
		case k == KeyReplyMode:
			s.ReplyMode = domain.ReplyMode(v)
		case k == KeyBanPolicy:
			s.BanPolicy = domain.BanPolicy(v)
		case k == KeyCooldown:
			s.Cooldown, _ = ParseDuration(v)
		case k == KeyStateTimeout:
			s.StateTimeout, _ = ParseDuration(v)
		case k == KeyTargetChat:
			s.TargetChat, _ = strconv.ParseInt(v, 10, 64)
		case k == KeySingleThread:
			s.SingleThread, _ = strconv.Atoi(v)
		case strings.HasPrefix(k, TextPrefix):
			s.Texts[strings.TrimPrefix(k, TextPrefix)] = v
		case strings.HasPrefix(k, EmojiPrefix):
			c, _ := domain.ParseCategory(strings.TrimPrefix(k, EmojiPrefix))
			s.Emojis[c] = v
		}
	}
	return s, bad
}
