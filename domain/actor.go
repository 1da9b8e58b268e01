package domain

import "fmt"

// Actor is the account owner described by actor.json
type Actor struct {
	Name              string
	URL               string
	PreferredUsername string
	Summary           string
}

// ShortHandle returns the local handle, e.g. "@alice"
func (a *Actor) ShortHandle() string {
	return "@" + a.PreferredUsername
}

func (a *Actor) ToString() string {
	return fmt.Sprintf("%q (%s)", a.Name, a.URL)
}
