package odm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/mgo/v3"

	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/mapping"
)

// DefaultDatabase is used when neither the connection string nor the
// configuration names one.
const DefaultDatabase = "test"

// dialTimeout bounds the first dial when the context has no deadline.
const dialTimeout = 10 * time.Second

// Factory creates the document manager named by "adapter".
type Factory func(connectionString string, cfg *Configuration) (*DocumentManager, error)

// NewFactories returns an empty document manager factory table.
func NewFactories() *factory.Registry[Factory] {
	return factory.New[Factory]("document manager adapter")
}

// DocumentManager owns one mgo session, dialed on first use. Callers get
// copies of it and close those; Close releases the master session.
type DocumentManager struct {
	info   mgo.DialInfo
	config *Configuration

	dialMu  sync.Mutex
	session *mgo.Session
	closed  bool

	mu       sync.RWMutex
	metadata map[string]*mapping.ClassMetadata
}

// New parses connectionString without dialing. An empty string means a
// server on localhost.
func New(connectionString string, cfg *Configuration) (*DocumentManager, error) {
	if connectionString == "" {
		connectionString = "localhost"
	}
	info, err := mgo.ParseURL(connectionString)
	if err != nil {
		return nil, errors.NewNotValid(err, "connection string")
	}
	if cfg == nil {
		cfg = &Configuration{}
	}
	cfg.applyDefaults()
	return &DocumentManager{
		info:     *info,
		config:   cfg,
		metadata: make(map[string]*mapping.ClassMetadata),
	}, nil
}

func (dm *DocumentManager) Configuration() *Configuration { return dm.config }

// Addrs returns the servers named by the connection string.
func (dm *DocumentManager) Addrs() []string { return append([]string(nil), dm.info.Addrs...) }

// DatabaseName is the configured default database, else the one in the
// connection string, else DefaultDatabase.
func (dm *DocumentManager) DatabaseName() string {
	switch {
	case dm.config.DefaultDB != "":
		return dm.config.DefaultDB
	case dm.info.Database != "":
		return dm.info.Database
	}
	return DefaultDatabase
}

// Session returns a copy of the master session, dialing it first if
// needed. The caller must Close the copy.
func (dm *DocumentManager) Session(ctx context.Context) (*mgo.Session, error) {
	dm.dialMu.Lock()
	defer dm.dialMu.Unlock()
	if dm.closed {
		return nil, errors.Errorf("document manager closed")
	}
	if dm.session == nil {
		info := dm.info
		info.Timeout = dialTimeout
		if deadline, ok := ctx.Deadline(); ok {
			info.Timeout = time.Until(deadline)
		}
		s, err := mgo.DialWithInfo(&info)
		if err != nil {
			return nil, errors.Annotatef(err, "dialing %s", strings.Join(info.Addrs, ","))
		}
		dm.session = s
	}
	return dm.session.Copy(), nil
}

// Ping checks the server on a fresh session copy.
func (dm *DocumentManager) Ping(ctx context.Context) error {
	s, err := dm.Session(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	return errors.Trace(s.Ping())
}

// Find loads the document with the given _id into dst. A missing document
// is a NotFound error.
func (dm *DocumentManager) Find(ctx context.Context, document string, id, dst any) error {
	md, err := dm.ClassMetadata(ctx, document)
	if err != nil {
		return errors.Trace(err)
	}
	s, err := dm.Session(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer s.Close()
	err = s.DB(dm.DatabaseName()).C(md.Collection).FindId(id).One(dst)
	if errors.Is(err, mgo.ErrNotFound) {
		return errors.NotFoundf("%s %v", md.Name, id)
	}
	return errors.Trace(err)
}

// Close releases the master session. Copies handed out earlier stay
// usable until closed by their owners.
func (dm *DocumentManager) Close() error {
	dm.dialMu.Lock()
	defer dm.dialMu.Unlock()
	if dm.session != nil {
		dm.session.Close()
		dm.session = nil
	}
	dm.closed = true
	return nil
}

// ClassMetadata returns the metadata of a document, given by full name or
// as "Alias:Short". An unset collection defaults to the short name.
func (dm *DocumentManager) ClassMetadata(ctx context.Context, document string) (*mapping.ClassMetadata, error) {
	name, err := dm.config.DocumentName(document)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dm.mu.RLock()
	md, ok := dm.metadata[name]
	dm.mu.RUnlock()
	if ok {
		return md, nil
	}

	key := "metadata:" + name
	pool := dm.config.MetadataCache
	if pool != nil {
		if raw, hit, err := pool.Get(ctx, key); err == nil && hit {
			var cached mapping.ClassMetadata
			if json.Unmarshal(raw, &cached) == nil {
				return dm.remember(name, &cached), nil
			}
		}
	}

	loaded, err := dm.config.MetadataDriver.LoadMetadata(ctx, name)
	if err != nil {
		return nil, errors.Annotatef(err, "loading metadata for %q", name)
	}
	cp := *loaded
	if cp.Collection == "" {
		cp.Collection = name[strings.LastIndexByte(name, '.')+1:]
	}
	if pool != nil {
		if raw, err := json.Marshal(&cp); err == nil {
			_ = pool.Set(ctx, key, raw, 0)
		}
	}
	return dm.remember(name, &cp), nil
}

func (dm *DocumentManager) remember(name string, md *mapping.ClassMetadata) *mapping.ClassMetadata {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if prev, ok := dm.metadata[name]; ok {
		return prev
	}
	dm.metadata[name] = md
	return md
}
