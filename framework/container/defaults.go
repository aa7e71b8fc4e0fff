package container

import (
	"path/filepath"

	"github.com/km-arc/go-persistence/framework/tree"
)

// connectionTemplate is the default connection record.
func connectionTemplate() tree.Node {
	return tree.MustOf(map[string]any{
		"eventSubscribers": []any{},
		"sqlLogger":        "",
		"sqlLoggerParams":  nil,
		"types":            map[string]any{},
		"typeMapping":      map[string]any{},
		"ping":             false,
		"parameters": map[string]any{
			"driver":        "mysql",
			"host":          "localhost",
			"user":          "root",
			"password":      nil,
			"port":          nil,
			"dbname":        "",
			"driverOptions": map[string]any{},
		},
	})
}

func cacheTemplate() tree.Node {
	return tree.MustOf(map[string]any{
		"adapter":   "array",
		"namespace": "",
		"options":   map[string]any{},
	})
}

func proxyTemplate(appPath string) map[string]any {
	return map[string]any{
		"autoGenerateClasses": true,
		"namespace":           "Proxy",
		"dir":                 filepath.Join(appPath, "..", "library", "Proxy"),
	}
}

func entityManagerTemplate(appPath, conn, cacheName string) tree.Node {
	return tree.MustOf(map[string]any{
		"adapter":          "default",
		"entityNamespaces": map[string]any{},
		"connection":       conn,
		"proxy":            proxyTemplate(appPath),
		"queryCache":       cacheName,
		"resultCache":      cacheName,
		"metadataCache":    cacheName,
		"metadataDrivers":  map[string]any{},
		"namingStrategy":   "default",
		"dqlFunctions": map[string]any{
			"numeric":  map[string]any{},
			"datetime": map[string]any{},
			"string":   map[string]any{},
		},
	})
}

func documentManagerTemplate(appPath, cacheName string) tree.Node {
	return tree.MustOf(map[string]any{
		"adapter":            "default",
		"documentNamespaces": map[string]any{},
		"proxy":              proxyTemplate(appPath),
		"hydrator": map[string]any{
			"namespace": "Hydrators",
			"dir":       filepath.Join(appPath, "..", "cache"),
		},
		"metadataCache":    cacheName,
		"metadataDrivers":  map[string]any{},
		"connectionString": "",
	})
}

// metadataDriverTemplate is merged under every entry of
// metadataDrivers.drivers.
func metadataDriverTemplate(cacheName string) tree.Node {
	return tree.MustOf(map[string]any{
		"adapter":          "yaml",
		"mappingNamespace": "",
		"mappingDirs":      []any{},
		"readerCache":      cacheName,
		"readerNamespaces": map[string]any{},
	})
}
