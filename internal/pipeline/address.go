package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/property-research/internal/model"
)

// ParseAddress splits a one-line address into house number and street name
// on the first space. Street names are upper-cased to match the records
// portal. A single token is treated as a street name.
func ParseAddress(address string) model.AddressParts {
	fields := strings.Fields(address)
	switch len(fields) {
	case 0:
		return model.AddressParts{}
	case 1:
		return model.AddressParts{StreetName: upperStreet(fields[0])}
	default:
		return model.AddressParts{
			HouseNumber: fields[0],
			StreetName:  upperStreet(strings.Join(fields[1:], " ")),
		}
	}
}

// upperStreet builds a fresh Caser per call since Casers are not safe for
// concurrent use.
func upperStreet(s string) string {
	return cases.Upper(language.AmericanEnglish).String(s)
}
