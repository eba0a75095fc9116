package domain

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/speccoll/arkmint/pkg/anvl"
)

// Registry field names as they appear on the wire. Administrative fields are
// underscore-prefixed, descriptive fields use the dc. / erc. profiles, and
// FieldReusable is our own flag field that EZID stores but does not interpret.
const (
	FieldTarget     = "_target"
	FieldProfile    = "_profile"
	FieldStatus     = "_status"
	FieldOwner      = "_owner"
	FieldOwnerGroup = "_ownergroup"
	FieldCreated    = "_created"
	FieldUpdated    = "_updated"
	FieldExport     = "_export"

	FieldDCCreator   = "dc.creator"
	FieldDCTitle     = "dc.title"
	FieldDCType      = "dc.type"
	FieldDCDate      = "dc.date"
	FieldDCPublisher = "dc.publisher"
	FieldERCWho      = "erc.who"
	FieldERCWhat     = "erc.what"
	FieldERCWhen     = "erc.when"

	FieldReusable = "arkmint.reusable"
)

// Ark is an identifier record. ARK is the primary key and is immutable once
// minted; everything after a mint is an update to the same identifier.
type Ark struct {
	ARK        string
	Target     string
	Profile    string
	Status     string
	Owner      string
	OwnerGroup string
	Created    int64
	Updated    int64
	Export     bool

	DCCreator   string
	DCTitle     string
	DCType      string
	DCDate      string
	DCPublisher string
	ERCWho      string
	ERCWhat     string
	ERCWhen     string

	// Reusable marks a record whose metadata is a throwaway placeholder.
	// Local-only: the registry stores the flag field but never reads it.
	Reusable bool
}

// Some ARKs were minted for children of compound objects ("Front", "Page 2")
// that don't need identifiers of their own. Their titles mark them as
// candidates for reuse with entirely new metadata.
var placeholderTitle = regexp.MustCompile(`^([Pp](age|\.) \d+|[Ff]ront|[Bb]ack)$|^$`)

// PlaceholderTitle reports whether a title looks like a throwaway child-object
// title ("Page N", "p. N", "Front", "Back", or empty).
func PlaceholderTitle(title string) bool {
	return placeholderTitle.MatchString(title)
}

// FromRecord builds an Ark from a decoded registry record. Reusable is set
// when the flag field says so or when the title (if present) is a placeholder.
func FromRecord(rec *anvl.Record) *Ark {
	a := &Ark{
		ARK:         rec.Identifier(),
		Target:      rec.Get(FieldTarget),
		Profile:     rec.Get(FieldProfile),
		Status:      rec.Get(FieldStatus),
		Owner:       rec.Get(FieldOwner),
		OwnerGroup:  rec.Get(FieldOwnerGroup),
		Created:     parseTimestamp(rec.Get(FieldCreated)),
		Updated:     parseTimestamp(rec.Get(FieldUpdated)),
		Export:      rec.Get(FieldExport) != "no",
		DCCreator:   rec.Get(FieldDCCreator),
		DCTitle:     rec.Get(FieldDCTitle),
		DCType:      rec.Get(FieldDCType),
		DCDate:      rec.Get(FieldDCDate),
		DCPublisher: rec.Get(FieldDCPublisher),
		ERCWho:      rec.Get(FieldERCWho),
		ERCWhat:     rec.Get(FieldERCWhat),
		ERCWhen:     rec.Get(FieldERCWhen),
	}

	if strings.EqualFold(rec.Get(FieldReusable), "true") {
		a.Reusable = true
	} else if title, ok := rec.Lookup(FieldDCTitle); ok && PlaceholderTitle(title) {
		a.Reusable = true
	}

	return a
}

// Record renders the Ark in the registry's display order.
func (a *Ark) Record() *anvl.Record {
	rec := anvl.NewRecord()
	rec.SetIdentifier(a.ARK)
	rec.Set(FieldCreated, strconv.FormatInt(a.Created, 10))
	rec.Set(FieldExport, exportValue(a.Export))
	rec.Set(FieldOwner, a.Owner)
	rec.Set(FieldOwnerGroup, a.OwnerGroup)
	rec.Set(FieldProfile, a.Profile)
	rec.Set(FieldStatus, a.Status)
	rec.Set(FieldTarget, a.Target)
	rec.Set(FieldUpdated, strconv.FormatInt(a.Updated, 10))
	rec.Set(FieldDCCreator, a.DCCreator)
	rec.Set(FieldDCDate, a.DCDate)
	rec.Set(FieldDCPublisher, a.DCPublisher)
	rec.Set(FieldDCTitle, a.DCTitle)
	rec.Set(FieldDCType, a.DCType)
	rec.Set(FieldERCWhat, a.ERCWhat)
	rec.Set(FieldERCWhen, a.ERCWhen)
	rec.Set(FieldERCWho, a.ERCWho)
	rec.Set(FieldReusable, strconv.FormatBool(a.Reusable))
	return rec
}

func parseTimestamp(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func exportValue(export bool) string {
	if export {
		return "yes"
	}
	return "no"
}
