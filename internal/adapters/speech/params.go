package speech

import (
	"fmt"
	"regexp"
)

var percentRx = regexp.MustCompile(`^[+-]\d{1,3}%$`)

// Params are the voice settings applied to every synthesis request.
type Params struct {
	voice  string
	rate   string
	volume string
}

// NewParams validates the signed-percentage format the synthesis service
// expects for rate and volume, e.g. "+10%" or "-5%". Invalid values are a
// configuration error and should be fatal at startup.
func NewParams(voice, rate, volume string) (Params, error) {
	if voice == "" {
		return Params{}, fmt.Errorf("voice must not be empty")
	}
	if !percentRx.MatchString(rate) {
		return Params{}, fmt.Errorf("invalid rate %q: expected a signed percentage like '+10%%'", rate)
	}
	if !percentRx.MatchString(volume) {
		return Params{}, fmt.Errorf("invalid volume %q: expected a signed percentage like '-5%%'", volume)
	}
	return Params{voice: voice, rate: rate, volume: volume}, nil
}

func (p Params) Voice() string {
	return p.voice
}

func (p Params) Rate() string {
	return p.rate
}

func (p Params) Volume() string {
	return p.volume
}
