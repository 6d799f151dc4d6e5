// Package klass reads code lists and correspondence tables from Statistics
// Norway's classification registry (KLASS), either over its REST API or from
// an offline snapshot directory.
package klass

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Classification ids used by the KOSTRA helpers.
const (
	Municipalities       = 131 // kommuneinndeling
	Counties             = 104 // fylkesinndeling
	KostraGroups         = 112 // KOSTRA-grupper for kommuner
	CountyMunicipalities = 127 // fylkeskommuner
	CountyKostraRegions  = 152 // KOSTRA-grupper for fylkeskommuner
	OsloBoroughs         = 241 // bydeler i Oslo
	MunicipalityRegions  = 231 // gyldige kommuneregioner i KOSTRA
	CountyRegions        = 232 // gyldige fylkesregioner i KOSTRA
)

// ErrNotFound is matched by errors.Is when the registry has nothing for a
// classification, correspondence or date.
var ErrNotFound = errors.New("klass: not found")

// StatusError is a non-2xx answer from the registry API.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("klass: HTTP %d for %s", e.StatusCode, e.URL)
}

// Is makes a 404 match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err means the registry had no data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Code is one entry of a code list.
type Code struct {
	Code       string `json:"code"`
	ParentCode string `json:"parentCode"`
	Level      string `json:"level"`
	Name       string `json:"name"`
	ShortName  string `json:"shortName,omitempty"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidTo    string `json:"validTo,omitempty"`
}

// CorrespondenceItem links a source code to a target code.
type CorrespondenceItem struct {
	SourceCode string `json:"sourceCode"`
	SourceName string `json:"sourceName"`
	TargetCode string `json:"targetCode"`
	TargetName string `json:"targetName"`
	ValidFrom  string `json:"validFrom,omitempty"`
	ValidTo    string `json:"validTo,omitempty"`
}

// Query selects the validity window and presentation of a request. An empty
// To asks for the codes valid at From.
type Query struct {
	From          string
	To            string
	Language      string
	IncludeFuture bool
	SelectLevel   int
}

// YearQuery covers a whole calendar year.
func YearQuery(year string) Query {
	return Query{From: year + "-01-01", To: year + "-12-31"}
}

// DateQuery asks for what is valid on the first of January of year.
func DateQuery(year string) Query {
	return Query{From: year + "-01-01"}
}

// Registry is the read side of KLASS used throughout the module.
type Registry interface {
	Codes(ctx context.Context, classification int, q Query) ([]Code, error)
	Correspondence(ctx context.Context, source, target int, q Query) ([]CorrespondenceItem, error)
}
