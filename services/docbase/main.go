package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/docbase-tech/docbase/activity"
	"github.com/docbase-tech/docbase/api"
	"github.com/docbase-tech/docbase/cache"
	"github.com/docbase-tech/docbase/core/csql"
	"github.com/docbase-tech/docbase/core/logger"
	"github.com/docbase-tech/docbase/core/registry"
	"github.com/docbase-tech/docbase/kss"
	"github.com/docbase-tech/docbase/ratelimit"
	"github.com/docbase-tech/docbase/store"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres       string `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	PostgresSchema string `env:"POSTGRES_SCHEMA,default=docbase" description:"the database schema to use"`
	JWTSecret      string `env:"JWT_SECRET,required" description:"the secret that signs console bearer tokens"`
	RedisAddr      string `env:"REDIS_ADDR,optional" description:"redis address for the collection cache, in-memory when empty"`
	RedisPassword  string `env:"REDIS_PASSWORD,optional" description:"redis password"`
	KafkaBrokers   string `env:"KAFKA_BROKERS,optional" description:"comma-separated kafka brokers for the activity mirror"`
	StoragePath    string `env:"STORAGE_PATH,optional" description:"local folder for uploaded files"`
	AWSBucketName  string `env:"AWS_BUCKET_NAME,optional" description:"S3 bucket for uploaded files, takes precedence over STORAGE_PATH"`
	AWSRegion      string `env:"AWS_REGION,optional" description:"S3 bucket region"`
	AccessID       string `env:"AWS_ACCESS_ID,optional" description:"AWS access key id"`
	AccessKey      string `env:"AWS_ACCESS_KEY,optional" description:"AWS access key"`
	RateLimit      int    `env:"RATE_LIMIT,default=60" description:"database API requests per caller per minute, 0 disables"`
	LogLevel       string `env:"LOG_LEVEL,optional,default=info" description:"The level used for logger, can be debug, warning, info, error"`
	Port           string `env:"PORT,default=3000" description:"the port to listen on"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	level, err := logrus.ParseLevel(service.LogLevel)
	if err != nil {
		panic(err)
	}
	logger.InitLogger(level)

	db := csql.OpenWithSchema(service.Postgres, service.PostgresSchema)
	defer db.Close()

	s := store.New(db)
	s.EnsureSchema()
	rg := registry.New(db)

	var c cache.Cache
	if service.RedisAddr != "" {
		redisCache, err := cache.NewRedis(service.RedisAddr, service.RedisPassword, cache.DefaultConfig())
		if err != nil {
			panic(err)
		}
		c = redisCache
	} else {
		c = cache.NewMemory(cache.DefaultConfig())
	}
	defer c.Close()

	var blobs kss.Driver
	if service.AWSBucketName != "" {
		s3, err := kss.NewS3(kss.S3Configuration{
			AWSBucketName: service.AWSBucketName,
			AWSRegion:     service.AWSRegion,
			AccessID:      service.AccessID,
			AccessKey:     service.AccessKey,
		})
		if err != nil {
			panic(err)
		}
		blobs = s3
	} else if service.StoragePath != "" {
		local, err := kss.NewLocalFilesystem(service.StoragePath)
		if err != nil {
			panic(err)
		}
		blobs = local
	}

	var brokers []string
	if service.KafkaBrokers != "" {
		brokers = strings.Split(service.KafkaBrokers, ",")
	}
	audit := activity.New(db, brokers)
	defer audit.Close()

	var limiter *ratelimit.Limiter
	if service.RateLimit > 0 {
		limiter = ratelimit.New(service.RateLimit, time.Minute)
		defer limiter.Close()
	}

	router := mux.NewRouter()
	api.New(&api.Builder{
		DB:         db,
		Router:     router,
		JWTSecret:  service.JWTSecret,
		Cache:      c,
		BlobDriver: blobs,
		Activity:   audit,
		Limiter:    limiter,
		Registry:   &rg,
	})
	logger.AddRequestID(router)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key"}),
	)

	log.Println("listen on port :" + service.Port)
	http.ListenAndServe(":"+service.Port, cors(handlers.CompressHandler(router)))
}
