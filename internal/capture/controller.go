// Package capture runs a single location capture and keeps the session view.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fieldtrack-go/internal/geo"
	"fieldtrack-go/internal/logging"
	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/photo"
	"fieldtrack-go/internal/queue"
)

type Outcome string

const (
	OutcomeSaved  Outcome = "saved"
	OutcomeQueued Outcome = "queued"
)

var ErrNothingToUpdate = errors.New("nothing to update")

type Positioner interface {
	RequestFresh(ctx context.Context, timeout time.Duration) (geo.Position, error)
}

// Remote is the remote store as the controller uses it.
type Remote interface {
	IsConfigured() bool
	SaveLocation(ctx context.Context, rec models.LocationRecord) (string, error)
	UpdateLocation(ctx context.Context, rowKey string, patch models.RecordPatch) error
	UploadPhoto(ctx context.Context, data []byte, filename string) (string, error)
	ListLocations(ctx context.Context) ([]models.LocationRecord, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, rec models.LocationRecord) (int64, error)
	Count(ctx context.Context) (int, error)
}

type Connectivity interface {
	Online() bool
}

type WakeRequester interface {
	RequestWake(ctx context.Context) error
}

// TargetSink receives records that became known to the remote.
type TargetSink interface {
	AddRecord(rec models.LocationRecord) bool
}

// Draft is the transient input of the next capture.
type Draft struct {
	Tag         string `json:"tag"`
	Note        string `json:"note"`
	Contact     string `json:"contact"`
	PhotoStaged bool   `json:"photo_staged"`
	PhotoName   string `json:"photo_name,omitempty"`
}

type Result struct {
	Outcome Outcome               `json:"outcome"`
	Record  models.LocationRecord `json:"record"`
	LocalID int64                 `json:"local_id,omitempty"`
}

type Options struct {
	Positions       Positioner
	Remote          Remote
	Queue           Enqueuer
	Connectivity    Connectivity
	Wake            WakeRequester
	Targets         TargetSink
	Session         *Session
	Logger          *logging.Logger
	Now             func() time.Time
	PositionTimeout time.Duration
	MaxPhotoEdge    int
}

type Controller struct {
	mu    sync.Mutex
	draft Draft
	photo *photo.Staged

	saveMu sync.Mutex

	positions  Positioner
	remote     Remote
	queue      Enqueuer
	online     Connectivity
	wake       WakeRequester
	targets    TargetSink
	session    *Session
	log        *logging.Logger
	now        func() time.Time
	posTimeout time.Duration
	maxEdge    int
}

func NewController(opts Options) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Session == nil {
		opts.Session = NewSession()
	}
	if opts.PositionTimeout <= 0 {
		opts.PositionTimeout = 10 * time.Second
	}
	return &Controller{
		positions:  opts.Positions,
		remote:     opts.Remote,
		queue:      opts.Queue,
		online:     opts.Connectivity,
		wake:       opts.Wake,
		targets:    opts.Targets,
		session:    opts.Session,
		log:        opts.Logger,
		now:        opts.Now,
		posTimeout: opts.PositionTimeout,
		maxEdge:    opts.MaxPhotoEdge,
	}
}

func (c *Controller) Session() *Session { return c.session }

// SetDraft replaces tag, note and contact of the next capture.
func (c *Controller) SetDraft(tag, note, contact string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Tag = strings.TrimSpace(tag)
	c.draft.Note = note
	c.draft.Contact = strings.TrimSpace(contact)
}

func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.PhotoStaged = !c.photo.Empty()
	if d.PhotoStaged {
		d.PhotoName = c.photo.Filename
	}
	return d
}

// StagePhoto holds data for upload with the next capture.
func (c *Controller) StagePhoto(data []byte, filename string) {
	if strings.TrimSpace(filename) == "" {
		filename = photo.DefaultFilename(c.now())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photo = &photo.Staged{Data: data, Filename: filename}
}

func (c *Controller) ClearPhoto() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photo = nil
}

func (c *Controller) clearInput() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photo = nil
	c.draft = Draft{}
}

// Save captures one location. Non-empty tag and note override the draft.
// A position failure leaves every piece of state as it was.
func (c *Controller) Save(ctx context.Context, tag, note string) (Result, error) {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	pos, err := c.positions.RequestFresh(ctx, c.posTimeout)
	if err != nil {
		if !errors.Is(err, geo.ErrPositionUnavailable) {
			err = fmt.Errorf("%w: %v", geo.ErrPositionUnavailable, err)
		}
		return Result{}, err
	}

	c.mu.Lock()
	draft := c.draft
	staged := c.photo
	c.mu.Unlock()
	defer c.clearInput()

	if strings.TrimSpace(tag) != "" {
		draft.Tag = strings.TrimSpace(tag)
	}
	if note != "" {
		draft.Note = note
	}

	now := c.now()
	rec := models.LocationRecord{
		Lat:          pos.Lat,
		Lng:          pos.Lng,
		Tag:          draft.Tag,
		Note:         draft.Note,
		Contact:      draft.Contact,
		PhotoLink:    c.upload(ctx, staged),
		CreatedDate:  now.Format(models.DateLayout),
		CreatedTime:  now.Format(models.TimeLayout),
		ExternalLink: pos.Point().MapsLink(),
		Status:       models.StatusNew,
	}

	if c.canSaveNow() {
		row, err := c.remote.SaveLocation(ctx, rec)
		if err == nil {
			rec.RowKey = row
			rec.Status = models.StatusSynced
			c.session.Add(Entry{Record: rec})
			if c.targets != nil {
				c.targets.AddRecord(rec)
			}
			c.log.Infof("location saved (row %s)", row)
			return Result{Outcome: OutcomeSaved, Record: rec}, nil
		}
		c.log.Warnf("immediate save failed, queueing: %v", err)
	}

	rec.Status = models.StatusPendingSync
	id, err := c.queue.Enqueue(ctx, rec)
	if err != nil {
		c.log.Errorf("location lost, queue unavailable: %v", err)
		return Result{}, err
	}
	c.session.Add(Entry{Record: rec, Pending: true, LocalID: id})
	if c.wake != nil {
		if err := c.wake.RequestWake(ctx); err != nil {
			c.log.Warnf("background wake registration failed: %v", err)
		}
	}
	c.log.Infof("location queued (local %d)", id)
	return Result{Outcome: OutcomeQueued, Record: rec, LocalID: id}, nil
}

func (c *Controller) canSaveNow() bool {
	if c.remote == nil || !c.remote.IsConfigured() {
		return false
	}
	return c.online == nil || c.online.Online()
}

// upload returns the link of the staged photo, or "" when there is none or
// the upload failed.
func (c *Controller) upload(ctx context.Context, staged *photo.Staged) string {
	if staged.Empty() || c.remote == nil || !c.remote.IsConfigured() {
		return ""
	}
	data, name := staged.Data, staged.Filename
	if out, changed := photo.Normalize(data, c.maxEdge); changed {
		data, name = out, photo.JPEGName(name)
	}
	link, err := c.remote.UploadPhoto(ctx, data, name)
	if err != nil {
		c.log.Warnf("saving without photo: %v", err)
		return ""
	}
	return link
}

// UpdateRecord edits a synced record remotely and then in the session view.
func (c *Controller) UpdateRecord(ctx context.Context, rowKey string, patch models.RecordPatch) error {
	if patch.Empty() {
		return ErrNothingToUpdate
	}
	if err := c.remote.UpdateLocation(ctx, rowKey, patch); err != nil {
		return err
	}
	if !c.session.Update(rowKey, patch) {
		c.log.Debugf("row %s updated remotely but not in session", rowKey)
	}
	return nil
}

// Synced is registered with the sync coordinator for every confirmed entry.
func (c *Controller) Synced(entry queue.Entry, rec models.LocationRecord) {
	if !c.session.MarkSynced(entry.LocalID, rec) {
		c.session.Add(Entry{Record: rec})
	}
	if c.targets != nil {
		c.targets.AddRecord(rec)
	}
}

// LoadRemote merges the remote list into the session view.
func (c *Controller) LoadRemote(ctx context.Context) (int, error) {
	if c.remote == nil || !c.remote.IsConfigured() {
		return 0, nil
	}
	records, err := c.remote.ListLocations(ctx)
	if err != nil {
		return 0, err
	}
	return c.session.Merge(records), nil
}

func (c *Controller) PendingCount(ctx context.Context) (int, error) {
	return c.queue.Count(ctx)
}
