package handle

import (
	"fmt"
	"strings"
)

// Location is one weighted resolution target for a location-based handle.
// View distinguishes resolution intents (IIIF manifest, full image, info
// document) behind a single identifier.
type Location struct {
	Weight int
	Href   string
	View   string
}

func (l Location) toXML() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<location href="%s" weight="%d"`, l.Href, l.Weight)
	if l.View != "" {
		fmt.Fprintf(&b, ` view="%s"`, l.View)
	}
	b.WriteString("/>")
	return b.String()
}

// locationsXML serializes the weighted resolution list into the 10320/loc
// value payload.
func locationsXML(locations []Location) string {
	var b strings.Builder
	b.WriteString("<locations>")
	for _, loc := range locations {
		b.WriteString(loc.toXML())
	}
	b.WriteString("</locations>")
	return b.String()
}
