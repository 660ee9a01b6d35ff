package arr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"micromanagerr/internal/logging"
)

// Tag is a remote tag definition.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// ListTags returns every tag defined on the instance.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.do(ctx, "list tags", http.MethodGet, "tag", nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateTag returns the tag for label, creating it when absent.
//
// Creation is create-or-get: when the POST is rejected because another writer
// created the label first, the catalog is re-read and the existing tag is
// returned. Concurrent calls for the same normalized label share one request.
func (c *Client) CreateTag(ctx context.Context, label string) (Tag, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Tag{}, errors.New("tag label must not be empty")
	}
	key := NormalizeLabel(label)
	v, err, shared := c.creates.Do(key, func() (any, error) {
		return c.createOrGet(ctx, label, key)
	})
	if err != nil {
		return Tag{}, err
	}
	if shared {
		c.logger.Debug("tag create collapsed", logging.String(logging.FieldLabel, label))
	}
	return v.(Tag), nil
}

func (c *Client) createOrGet(ctx context.Context, label, key string) (Tag, error) {
	var created Tag
	err := c.do(ctx, "create tag", http.MethodPost, "tag", Tag{Label: label}, &created)
	if err == nil {
		return created, nil
	}
	var status *StatusError
	if !errors.As(err, &status) {
		return Tag{}, err
	}
	tags, listErr := c.ListTags(ctx)
	if listErr != nil {
		return Tag{}, fmt.Errorf("%w (re-list failed: %v)", err, listErr)
	}
	if existing, ok := FindTag(tags, key); ok {
		c.logger.Info("tag already existed",
			logging.String(logging.FieldLabel, existing.Label),
			logging.Int("tag_id", existing.ID),
		)
		return existing, nil
	}
	return Tag{}, err
}

// FindTag looks up a tag by label using normalized comparison. When the
// catalog holds duplicates the lowest id wins.
func FindTag(tags []Tag, label string) (Tag, bool) {
	key := NormalizeLabel(label)
	var found Tag
	ok := false
	for _, t := range tags {
		if NormalizeLabel(t.Label) != key {
			continue
		}
		if !ok || t.ID < found.ID {
			found = t
			ok = true
		}
	}
	return found, ok
}

type editorRequest map[string]any

// AttachTag adds tagID to the item via the bulk editor.
func (c *Client) AttachTag(ctx context.Context, itemID, tagID int) error {
	return c.editTags(ctx, "attach tag", itemID, tagID, "add")
}

// DetachTag removes tagID from the item via the bulk editor.
func (c *Client) DetachTag(ctx context.Context, itemID, tagID int) error {
	return c.editTags(ctx, "detach tag", itemID, tagID, "remove")
}

func (c *Client) editTags(ctx context.Context, op string, itemID, tagID int, mode string) error {
	body := editorRequest{
		c.kind.editorIDsField(): []int{itemID},
		"tags":                  []int{tagID},
		"applyTags":             mode,
	}
	if err := c.do(ctx, op, http.MethodPut, c.kind.resource()+"/editor", body, nil); err != nil {
		return err
	}
	c.logger.Debug("item tags edited",
		logging.String("op", op),
		logging.Int(logging.FieldItemID, itemID),
		logging.Int("tag_id", tagID),
	)
	return nil
}
