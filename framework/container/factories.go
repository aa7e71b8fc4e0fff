package container

import (
	"github.com/km-arc/go-persistence/framework/cache"
	"github.com/km-arc/go-persistence/framework/database"
	"github.com/km-arc/go-persistence/framework/factory"
	"github.com/km-arc/go-persistence/framework/mapping"
	"github.com/km-arc/go-persistence/framework/odm"
	"github.com/km-arc/go-persistence/framework/orm"
)

// Factories holds every identifier table the builders consult. Service
// providers fill them in during Register; they are read-only afterwards.
type Factories struct {
	Caches           *cache.Adapters
	Drivers          *factory.Registry[database.Opener]
	Subscribers      *factory.Registry[database.SubscriberFactory]
	StatementLoggers *factory.Registry[database.StatementLoggerFactory]
	MetadataDrivers  *factory.Registry[mapping.DriverFactory]
	NamingStrategies *factory.Registry[orm.NamingStrategyFactory]
	EntityManagers   *factory.Registry[orm.Factory]
	DocumentManagers *factory.Registry[odm.Factory]
}

// NewFactories returns empty tables.
func NewFactories() *Factories {
	return &Factories{
		Caches:           cache.NewAdapters(),
		Drivers:          database.NewDrivers(),
		Subscribers:      database.NewSubscribers(),
		StatementLoggers: database.NewStatementLoggers(),
		MetadataDrivers:  mapping.NewDrivers(),
		NamingStrategies: orm.NewNamingStrategies(),
		EntityManagers:   orm.NewFactories(),
		DocumentManagers: odm.NewFactories(),
	}
}
