package config

import "errors"

var (
	// ErrMissingDatabaseID indicates that database_id is empty
	ErrMissingDatabaseID = errors.New("database_id is required in configuration")

	// ErrMissingCollectionID indicates that collection_id is empty
	ErrMissingCollectionID = errors.New("collection_id is required in configuration")

	// ErrMissingEndpoint indicates that the Appwrite endpoint is not configured
	ErrMissingEndpoint = errors.New("appwrite.endpoint is required for the appwrite backend")

	// ErrMissingProject indicates that the Appwrite project ID is not configured
	ErrMissingProject = errors.New("appwrite.project is required for the appwrite backend")

	// ErrMissingMongoURI indicates that the MongoDB connection string is not configured
	ErrMissingMongoURI = errors.New("mongo.uri is required for the mongo backend")

	// ErrMissingDBPath indicates that the SQLite file path is empty
	ErrMissingDBPath = errors.New("sqlite.path is required for the sqlite backend")

	// ErrUnknownBackend indicates an unsupported backend name
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrInvalidTimeout indicates that request_timeout is not a Go duration
	ErrInvalidTimeout = errors.New("invalid request_timeout")

	// ErrInvalidConfigFormat indicates that the config file is not valid TOML
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)
