package config

const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type StoreConfig interface {
	GetDocumentStore() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisPrefix() string
	GetMongoURI() string
	GetMongoDatabase() string
	GetDatabaseDSN() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetDocumentStore() string {
	return GetEnv("DOCUMENT_STORE", StoreMemory)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "vocaprep")
}

func (Store) GetMongoURI() string {
	return GetEnv("MONGO_URI", "mongodb://localhost:27017")
}

func (Store) GetMongoDatabase() string {
	return GetEnv("MONGO_DATABASE", "vocaprep")
}

func (Store) GetDatabaseDSN() string {
	return GetEnv("DATABASE_DSN", "")
}
