// conf/consts.go hard coded constants
package conf

const (
	// ComponentConf identifies configuration errors
	ComponentConf = "conf"

	// AppName is used for config directories and the env prefix
	AppName = "audiopulse"

	// EnvPrefix prefixes every bound environment variable
	EnvPrefix = "AUDIOPULSE"

	// DefaultEnvFile is the dotenv file read at startup when present
	DefaultEnvFile = ".env"

	// ConfigFileName is the config file searched for in the default paths
	ConfigFileName = "config.yaml"
)
