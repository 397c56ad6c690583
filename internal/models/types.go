package models

import (
	"fmt"
	"strings"

	"fieldtrack-go/internal/geo"
)

type Status string

const (
	StatusNew         Status = "New"
	StatusPendingSync Status = "PendingSync"
	StatusSynced      Status = "Synced"
)

// Built-in capture categories; any other non-empty tag is free-form.
const (
	TagResidential = "Stambeno"
	TagIndustrial  = "Industrijsko"
	TagCommercial  = "Poslovno"
	TagUnknown     = "Nepoznato"
)

var KnownTags = []string{TagResidential, TagIndustrial, TagCommercial, TagUnknown}

const (
	DateLayout = "02.01.2006"
	TimeLayout = "15:04"
)

// LocationRecord is one captured observation. Empty Tag, PhotoLink and RowKey
// mean the value is absent.
type LocationRecord struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Tag          string  `json:"tag,omitempty"`
	Note         string  `json:"note"`
	Contact      string  `json:"contact,omitempty"`
	PhotoLink    string  `json:"photo_link,omitempty"`
	CreatedDate  string  `json:"date"`
	CreatedTime  string  `json:"time"`
	ExternalLink string  `json:"maps_link"`
	Status       Status  `json:"status"`
	RowKey       string  `json:"row,omitempty"`
}

func (r LocationRecord) Point() geo.Point { return geo.Point{Lat: r.Lat, Lng: r.Lng} }

func (r LocationRecord) HasCoordinates() bool { return !r.Point().IsZero() }

// IdentityKey is the canonical identity used to merge session and remote
// records: the remote row key when known, else coordinates plus creation time.
func (r LocationRecord) IdentityKey() string {
	if strings.TrimSpace(r.RowKey) != "" {
		return "row:" + r.RowKey
	}
	return fmt.Sprintf("pt:%.6f,%.6f@%s %s", r.Lat, r.Lng, r.CreatedDate, r.CreatedTime)
}

// RecordPatch carries the editable fields of a synced record; nil fields are left alone.
type RecordPatch struct {
	Note      *string `json:"note,omitempty"`
	Contact   *string `json:"contact,omitempty"`
	PhotoLink *string `json:"photo_link,omitempty"`
}

func (p RecordPatch) Empty() bool {
	return p.Note == nil && p.Contact == nil && p.PhotoLink == nil
}

func (p RecordPatch) Apply(r *LocationRecord) {
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Contact != nil {
		r.Contact = *p.Contact
	}
	if p.PhotoLink != nil {
		r.PhotoLink = *p.PhotoLink
	}
}

// Route is a finished, decimated track.
type Route struct {
	StartTime string      `json:"start_time"`
	Duration  string      `json:"duration"`
	Points    []geo.Point `json:"points"`
}
