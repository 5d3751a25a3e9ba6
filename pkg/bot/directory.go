// Copyright 2024-2026 Aiku AI

package bot

import (
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
)

// Directory is a snapshot of the users and channels visible to the bot. The
// user and channel maps never change after NewDirectory returns; only the
// direct message map grows, and each entry is written at most once.
type Directory struct {
	users        map[string]User
	userOrder    []string
	channels     map[string]Channel
	channelOrder []string
	dms          *exsync.Map[string, string]
	dmChannels   *exsync.Map[string, string]
}

// NewDirectory builds a complete snapshot from listing results. Direct message
// channels are preloaded, except those whose user is not in the user list.
func NewDirectory(users []User, channels []Channel, log *zerolog.Logger) *Directory {
	d := &Directory{
		users:    make(map[string]User, len(users)),
		channels: make(map[string]Channel, len(channels)),
		dms:        exsync.NewMap[string, string](),
		dmChannels: exsync.NewMap[string, string](),
	}
	for _, u := range users {
		if _, dup := d.users[u.ID]; !dup {
			d.userOrder = append(d.userOrder, u.ID)
		}
		d.users[u.ID] = u
	}
	for _, c := range channels {
		if _, dup := d.channels[c.ID]; !dup {
			d.channelOrder = append(d.channelOrder, c.ID)
		}
		d.channels[c.ID] = c
		if c.User == "" {
			continue
		}
		if _, ok := d.users[c.User]; !ok {
			log.Debug().
				Str("channel_id", c.ID).
				Str("user_id", c.User).
				Msg("Not preloading direct message channel for unknown user")
			continue
		}
		d.storeDirectMessage(c.User, c.ID)
	}
	log.Debug().
		Int("users", len(d.users)).
		Int("channels", len(d.channels)).
		Msg("Directory built")
	return d
}

// User returns the user with the given id.
func (d *Directory) User(id string) (User, bool) {
	u, ok := d.users[id]
	return u, ok
}

// Channel returns the channel with the given id.
func (d *Directory) Channel(id string) (Channel, bool) {
	c, ok := d.channels[id]
	return c, ok
}

func (d *Directory) UserCount() int {
	return len(d.users)
}

func (d *Directory) ChannelCount() int {
	return len(d.channels)
}

// FindUserByName returns the id of the first user, in listing order, with the given name.
func (d *Directory) FindUserByName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, id := range d.userOrder {
		if d.users[id].Name == name {
			return id, true
		}
	}
	return "", false
}

// FindChannelByName returns the id of the first channel, in listing order, with
// the given name. Direct message channels are named after their user.
func (d *Directory) FindChannelByName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, id := range d.channelOrder {
		if d.channelName(d.channels[id]) == name {
			return id, true
		}
	}
	return "", false
}

func (d *Directory) channelName(c Channel) string {
	if c.Name != "" {
		return c.Name
	}
	if u, ok := d.users[c.User]; ok {
		return u.Name
	}
	return ""
}

// DirectMessage returns the cached direct message channel for a user.
func (d *Directory) DirectMessage(userID string) (string, bool) {
	return d.dms.Get(userID)
}

// storeDirectMessage caches a freshly opened direct message channel and
// returns the winning id if another goroutine stored one first.
func (d *Directory) storeDirectMessage(userID, channelID string) string {
	actual, _ := d.dms.GetOrSet(userID, channelID)
	d.dmChannels.GetOrSet(actual, userID)
	return actual
}

// IsDirectMessage reports whether id is a cached direct message channel,
// including ones opened after the snapshot was built.
func (d *Directory) IsDirectMessage(id string) bool {
	_, ok := d.dmChannels.Get(id)
	return ok
}

// Consistent reports whether every listed direct message channel that was
// cached belongs to a user in the directory. Channels opened later are only
// cached for known users, see Resolver.
func (d *Directory) Consistent() bool {
	for _, id := range d.channelOrder {
		c := d.channels[id]
		if c.User == "" {
			continue
		}
		if dm, ok := d.dms.Get(c.User); ok && dm == c.ID {
			if _, known := d.users[c.User]; !known {
				return false
			}
		}
	}
	return true
}
