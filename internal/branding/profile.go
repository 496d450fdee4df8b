package branding

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Profile is the company profile gathered before the requirements interview.
// A nil field has not been asked about yet.
type Profile struct {
	Name           *string           `json:"name"`
	TargetAudience *string           `json:"target_audience"`
	Industry       *string           `json:"industry"`
	Description    *string           `json:"description"`
	Mission        *string           `json:"mission"`
	Slogan         *string           `json:"slogan"`
	BrandVoice     *string           `json:"brand_voice"`
	Location       *string           `json:"location"`
	FoundingYear   Year              `json:"founding_year" validate:"omitempty,gte=1000,lte=2100"`
	Email          *string           `json:"email"`
	Phone          *string           `json:"phone"`
	Website        *string           `json:"website"`
	SocialMedia    map[string]string `json:"social_media"`
}

// Year is a founding year. Anything that is not a whole number, such as
// "Not Provided", decodes to zero.
type Year int

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = 0
		return nil
	}
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		*y = 0
		return nil
	}
	*y = Year(n)
	return nil
}

func (y Year) MarshalJSON() ([]byte, error) {
	if y == 0 {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(y))), nil
}

// Map renders the profile as a plain JSON object, dropping unasked fields.
func (p Profile) Map() map[string]any {
	raw, _ := json.Marshal(p)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	for k, v := range m {
		if v == nil {
			delete(m, k)
		}
	}
	return m
}
