package domain

import dErrors "caravel/pkg/domain-errors"

// FeedID names a NAV price feed, e.g. "nav-primary". Lowercase letters,
// digits, and single dashes; 2 to 32 characters; must start with a letter.
type FeedID string

func ParseFeedID(raw string) (FeedID, error) {
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "feed id is required")
	}
	if len(raw) < 2 || len(raw) > 32 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "feed id must be 2 to 32 characters")
	}
	if raw[0] < 'a' || raw[0] > 'z' {
		return "", dErrors.New(dErrors.CodeInvalidInput, "feed id must start with a lowercase letter")
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
			if i == len(raw)-1 || raw[i+1] == '-' {
				return "", dErrors.New(dErrors.CodeInvalidInput, "feed id dashes must separate segments")
			}
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "feed id may contain only lowercase letters, digits, and dashes")
		}
	}
	return FeedID(raw), nil
}

func (f FeedID) String() string {
	return string(f)
}

func (f FeedID) IsValid() bool {
	_, err := ParseFeedID(string(f))
	return err == nil
}
