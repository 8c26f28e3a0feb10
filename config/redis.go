package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

func applyRedisEnv(c *RedisConfig) {
	setString(&c.Addr, "SKIDHW_REDIS_ADDR")
	setString(&c.Password, "SKIDHW_REDIS_PASSWORD")
	if v, err := strconv.Atoi(os.Getenv("SKIDHW_REDIS_DB")); err == nil {
		c.DB = v
	}
}

type FirestoreConfig struct {
	ProjectID  string `yaml:"projectId"`
	Collection string `yaml:"collection"`
	// path to a service account file; empty means application default credentials
	CredentialsFile string `yaml:"credentialsFile"`
}

func applyFirestoreEnv(c *FirestoreConfig) {
	setString(&c.ProjectID, "GOOGLE_CLOUD_PROJECT")
	setString(&c.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
}
