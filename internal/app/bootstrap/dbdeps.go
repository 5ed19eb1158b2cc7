// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Runtime is allocated by ConnectDB and filled by Startup; WAFFLE passes
// DBDeps by value, so the pointer is how the later hooks share the process
// singletons built at startup.
type DBDeps struct {
	StrataChatMongoClient   *mongo.Client
	StrataChatMongoDatabase *mongo.Database

	Runtime *Runtime
}
