package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ValentinKolb/orbitapi/rpc/common"
	"github.com/ValentinKolb/orbitapi/rpc/serializer"
	"github.com/ValentinKolb/orbitapi/rpc/transport"
	"github.com/ValentinKolb/orbitapi/rpc/transport/http"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the gateway connection flags to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "base-url"
	cmd.PersistentFlags().String(key, "http://localhost:3000", WrapString("The base url of the OrbitDB HTTP gateway"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, common.DefaultTimeoutSecond, WrapString("The timeout in seconds of a single request (event streams are not limited)"))

	key = "header"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("Header sent with every request as key=value (can be repeated)"))

	key = "no-db-cache"
	cmd.PersistentFlags().Bool(key, false, WrapString("Open a new handle for every open of the same database"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("orbitapi")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// InitLogging applies the configured log level to all loggers
func InitLogging() error {
	return common.InitLoggers(viper.GetString("log-level"), os.Stderr)
}

// GetClientConfig reads the client configuration from viper
func GetClientConfig() (common.ClientConfig, error) {
	conf := common.DefaultClientConfig(strings.TrimRight(viper.GetString("base-url"), "/"))
	conf.TimeoutSecond = viper.GetInt("timeout")
	conf.UseDBCache = !viper.GetBool("no-db-cache")

	headers, err := ParseHeaders(viper.GetStringSlice("header"))
	if err != nil {
		return common.ClientConfig{}, err
	}
	conf.Headers = headers

	return conf, conf.Validate()
}

// ParseHeaders converts key=value pairs into a header map
func ParseHeaders(pairs []string) (map[string]string, error) {
	headers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q (expected key=value)", pair)
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers, nil
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	if s := serializer.ByName(name); s != nil {
		return s, nil
	}
	return nil, fmt.Errorf("invalid serializer %s", name)
}

// GetTransport creates the transport
func GetTransport() transport.IHTTPClientTransport {
	return http.NewHttpClientTransport()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
