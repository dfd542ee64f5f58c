package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabase     string
	RedisURL          string
	ServerPort        string
	JWTSecret         string
	BillingWebhookURL string
	FCMCredentials    string
	TwilioAccountSID  string
	TwilioAPIKey      string
	TwilioAPISecret   string
	RequestTTLMinutes int
	AllowedOrigins    []string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	ttl, _ := strconv.Atoi(os.Getenv("REQUEST_TTL_MINUTES"))

	origins := []string{"http://localhost:3000"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = strings.Split(raw, ",")
	}

	database := os.Getenv("MONGO_DATABASE")
	if database == "" {
		database = "advisor_service"
	}

	return &Config{
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     database,
		RedisURL:          os.Getenv("REDIS_URL"),
		ServerPort:        os.Getenv("SERVER_PORT"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		BillingWebhookURL: os.Getenv("BILLING_WEBHOOK_URL"),
		FCMCredentials:    os.Getenv("FCM_CREDENTIALS_PATH"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAPIKey:      os.Getenv("TWILIO_API_KEY"),
		TwilioAPISecret:   os.Getenv("TWILIO_API_SECRET"),
		RequestTTLMinutes: ttl,
		AllowedOrigins:    origins,
	}, nil
}
