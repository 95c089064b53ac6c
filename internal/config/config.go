package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the explicit configuration passed to every component at
// construction time.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Ledger struct {
		URL    string `mapstructure:"url"`
		APIKey string `mapstructure:"apiKey"`
	} `mapstructure:"ledger"`
	JWT struct {
		CookieName         string `mapstructure:"cookieName"`
		UserDataCookieName string `mapstructure:"userDataCookieName"`
		PrivateKeyBase64   string `mapstructure:"privateKeyBase64"`
		PublicKeyBase64    string `mapstructure:"publicKeyBase64"`
		PrivateKeyFile     string `mapstructure:"privateKeyFile"`
		PublicKeyFile      string `mapstructure:"publicKeyFile"`
	} `mapstructure:"jwt"`
	Cookies struct {
		Domain string `mapstructure:"domain"`
	} `mapstructure:"cookies"`
	Email struct {
		SendGridKey    string `mapstructure:"sendGridKey"`
		Sender         string `mapstructure:"sender"`
		SenderName     string `mapstructure:"senderName"`
		SupportAddress string `mapstructure:"supportAddress"`
	} `mapstructure:"email"`
	Stripe struct {
		APIKey           string `mapstructure:"apiKey"`
		CreditsPlanID    string `mapstructure:"creditsPlanId"`
		CreditsPlanLevel int    `mapstructure:"creditsPlanLevel"`
	} `mapstructure:"stripe"`
	Billing struct {
		DefaultCurrency      string `mapstructure:"defaultCurrency"`
		BookingDepositAmount int64  `mapstructure:"bookingDepositAmount"`
		CreditsTTLSeconds    int64  `mapstructure:"creditsTtlSeconds"`
		DemoAvatarURL        string `mapstructure:"demoAvatarUrl"`
	} `mapstructure:"billing"`
	InternalAPI struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"internalApi"`
}

// LoadConfig loads configuration from config.yaml and the environment.
func LoadConfig(envPath string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// A missing .env file is fine outside CI; viper still reads
		// the process environment below.
		_ = godotenv.Load(envPath)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("app.port", "3030")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("jwt.cookieName", "token")
	viper.SetDefault("jwt.userDataCookieName", "user_data")
	viper.SetDefault("cookies.domain", "localhost")
	viper.SetDefault("ledger.url", "http://localhost:2999")
	viper.SetDefault("billing.defaultCurrency", "USD")
	viper.SetDefault("billing.bookingDepositAmount", 1)
	// Granted credits effectively never expire: 999 years.
	viper.SetDefault("billing.creditsTtlSeconds", int64(31556926)*999)
	viper.SetDefault("billing.demoAvatarUrl",
		"https://www.gravatar.com/avatar/00000000000000000000000000000000?d=robohash")
	viper.SetDefault("stripe.creditsPlanLevel", 2000)
}
