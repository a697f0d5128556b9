package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// Codec represents supported audio codecs
type Codec string

const (
	CodecAAC  Codec = "aac"
	CodecOpus Codec = "opus"
	CodecMP3  Codec = "mp3"
)

// Container is the single file format every clip in the app is stored in.
type Container string

const (
	ContainerM4A  Container = "m4a"
	ContainerOpus Container = "ogg"
	ContainerMP3  Container = "mp3"
)

// Ext returns the file extension without the dot.
func (c Container) Ext() string { return string(c) }

// Codec returns the audio codec written into the container.
func (c Container) Codec() Codec {
	switch c {
	case ContainerOpus:
		return CodecOpus
	case ContainerMP3:
		return CodecMP3
	default:
		return CodecAAC
	}
}

// ParseContainer maps a configured name to a Container.
func ParseContainer(s string) (Container, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "m4a", "aac":
		return ContainerM4A, nil
	case "ogg", "opus":
		return ContainerOpus, nil
	case "mp3":
		return ContainerMP3, nil
	default:
		return "", pkgerrors.NewValidationError("container", s, "unsupported container")
	}
}

// AudioMetadata holds metadata of an audio file
type AudioMetadata struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	Bitrate    int
	Codec      string
	Format     string
	Size       int64
}

// AudioItem identifies one clip. It is a value: the With* methods return a
// modified copy and never touch the receiver.
type AudioItem struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Path        string        `json:"path"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Duration    time.Duration `json:"duration"`
	RemoteURL   string        `json:"remote_url,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Occurrences []string      `json:"occurrences,omitempty"`
}

// NewAudioItem returns a fresh item pointing at the canonical file name for id.
func NewAudioItem(id, title string, c Container) AudioItem {
	return AudioItem{
		ID:        id,
		Title:     title,
		Path:      CanonicalName(id, c),
		UpdatedAt: time.Now().UTC(),
	}
}

// CanonicalName is the file name of a clip's authoritative content.
func CanonicalName(id string, c Container) string {
	return id + "." + c.Ext()
}

// StagedName is the file name an edit of kind writes its candidate result to.
func StagedName(id string, kind EditKind, c Container) string {
	return id + "_" + kind.Suffix() + "." + c.Ext()
}

// PendingName is where an edit renders before the result replaces the staged
// file, so a failed render never touches the previous staged result.
func PendingName(id string, kind EditKind, c Container) string {
	return id + "_" + kind.Suffix() + ".tmp." + c.Ext()
}

func (a AudioItem) CanonicalName(c Container) string { return CanonicalName(a.ID, c) }

func (a AudioItem) StagedName(kind EditKind, c Container) string {
	return StagedName(a.ID, kind, c)
}

func (a AudioItem) PendingName(kind EditKind, c Container) string {
	return PendingName(a.ID, kind, c)
}

// Validate checks the invariants every stored item must satisfy.
func (a AudioItem) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return pkgerrors.NewValidationError("id", a.ID, "id must not be empty")
	}
	if err := ValidateName(a.Path); err != nil {
		return err
	}
	return nil
}

// ValidateName rejects anything that is not a bare file name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return pkgerrors.NewValidationError("path", name, "path must not be empty")
	case strings.ContainsAny(name, `/\`):
		return pkgerrors.NewValidationError("path", name, "path must be a bare file name")
	case name == "." || strings.Contains(name, ".."):
		return pkgerrors.NewValidationError("path", name, "path cannot contain '..'")
	}
	return nil
}

func (a AudioItem) clone() AudioItem {
	a.Tags = cloneStrings(a.Tags)
	a.Occurrences = cloneStrings(a.Occurrences)
	return a
}

func (a AudioItem) WithTitle(title string) AudioItem {
	b := a.clone()
	b.Title = title
	return b
}

func (a AudioItem) WithPath(path string) AudioItem {
	b := a.clone()
	b.Path = path
	return b
}

func (a AudioItem) WithDuration(d time.Duration) AudioItem {
	b := a.clone()
	b.Duration = d
	return b
}

func (a AudioItem) WithUpdatedAt(t time.Time) AudioItem {
	b := a.clone()
	b.UpdatedAt = t
	return b
}

func (a AudioItem) WithRemoteURL(url string) AudioItem {
	b := a.clone()
	b.RemoteURL = url
	return b
}

func (a AudioItem) WithImageURL(url string) AudioItem {
	b := a.clone()
	b.ImageURL = url
	return b
}

func (a AudioItem) WithTags(tags ...string) AudioItem {
	b := a.clone()
	b.Tags = cloneStrings(tags)
	return b
}

func (a AudioItem) WithOccurrences(ids ...string) AudioItem {
	b := a.clone()
	b.Occurrences = cloneStrings(ids)
	return b
}

// FromRecord hydrates an item from a loosely typed key-value record. Missing
// keys are left at their zero value; keys holding the wrong type are rejected.
func FromRecord(id string, rec map[string]any) (AudioItem, error) {
	item := AudioItem{ID: id}
	if strings.TrimSpace(id) == "" {
		return AudioItem{}, pkgerrors.NewValidationError("id", id, "id must not be empty")
	}

	var err error
	if item.Title, err = recordString(rec, "title"); err != nil {
		return AudioItem{}, err
	}
	if item.Path, err = recordString(rec, "path"); err != nil {
		return AudioItem{}, err
	}
	if item.RemoteURL, err = recordString(rec, "url"); err != nil {
		return AudioItem{}, err
	}
	if item.ImageURL, err = recordString(rec, "image_url"); err != nil {
		return AudioItem{}, err
	}
	updated, err := recordNumber(rec, "updated_at")
	if err != nil {
		return AudioItem{}, err
	}
	if updated > 0 {
		item.UpdatedAt = time.Unix(int64(updated), 0).UTC()
	}
	seconds, err := recordNumber(rec, "duration")
	if err != nil {
		return AudioItem{}, err
	}
	item.Duration = time.Duration(seconds * float64(time.Second))
	if item.Tags, err = recordStrings(rec, "tags"); err != nil {
		return AudioItem{}, err
	}
	if item.Occurrences, err = recordStrings(rec, "occurrences"); err != nil {
		return AudioItem{}, err
	}
	return item, nil
}

func recordString(rec map[string]any, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", pkgerrors.NewValidationError(key, v, "expected a string")
	}
	return s, nil
}

func recordNumber(rec map[string]any, key string) (float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, pkgerrors.NewValidationError(key, v, fmt.Sprintf("expected a number, got %T", v))
	}
}

func recordStrings(rec map[string]any, key string) ([]string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return cloneStrings(list), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, pkgerrors.NewValidationError(key, e, "expected a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	case map[string]any:
		// keyed sets store the reference as the key
		out := make([]string, 0, len(list))
		for k := range list {
			out = append(out, k)
		}
		slices.Sort(out)
		return out, nil
	default:
		return nil, pkgerrors.NewValidationError(key, v, "expected a list of strings")
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
