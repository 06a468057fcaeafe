package repository

import (
	"encoding/json"
	"fmt"
	"strconv"

	v1 "turnero/pkg/api/v1"
	"turnero/pkg/constraints"
)

// encodeFields flattens a session into the four storage keys. The user key is
// omitted when there is no profile.
func encodeFields(s *v1.Session) (map[string]string, error) {
	fields := map[string]string{
		constraints.KeyAccess:    s.AccessToken,
		constraints.KeyRefresh:   s.RefreshToken,
		constraints.KeyAccessExp: strconv.FormatInt(s.AccessExp, 10),
	}
	if s.User != nil {
		b, err := json.Marshal(s.User)
		if err != nil {
			return nil, fmt.Errorf("encode user profile: %w", err)
		}
		fields[constraints.KeyUser] = string(b)
	}
	return fields, nil
}

// decodeFields rebuilds a session. Partial records decode to nil.
func decodeFields(fields map[string]string) (*v1.Session, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	s := &v1.Session{
		AccessToken:  fields[constraints.KeyAccess],
		RefreshToken: fields[constraints.KeyRefresh],
	}
	if raw, ok := fields[constraints.KeyAccessExp]; ok {
		exp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", constraints.KeyAccessExp, err)
		}
		s.AccessExp = exp
	}
	if raw := fields[constraints.KeyUser]; raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &s.User); err != nil {
			return nil, fmt.Errorf("decode %s: %w", constraints.KeyUser, err)
		}
	}
	if !s.Complete() {
		return nil, nil
	}
	return s, nil
}

func encodeSession(s *v1.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(b []byte) (*v1.Session, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var s v1.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if !s.Complete() {
		return nil, nil
	}
	return &s, nil
}
