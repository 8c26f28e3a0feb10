package config

type MinioConfig struct {
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	Endpoint   string `yaml:"endpoint"`
	UseSSL     bool   `yaml:"useSSL"`
	Region     string `yaml:"region"`
	BucketName string `yaml:"bucketName"`
}

func applyMinioEnv(c *MinioConfig) {
	setString(&c.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Region, "MINIO_REGION")
	setString(&c.BucketName, "MINIO_BUCKET_NAME")
	setBool(&c.UseSSL, "MINIO_USE_SSL")
}

type GCSConfig struct {
	BucketName      string `yaml:"bucketName"`
	CredentialsFile string `yaml:"credentialsFile"`
}

func applyGCSEnv(c *GCSConfig) {
	setString(&c.BucketName, "GCS_BUCKET_NAME")
	setString(&c.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
}
