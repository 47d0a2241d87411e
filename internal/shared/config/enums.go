//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package config

// AppEnv represents the application environment
// ENUM(local,production,development,testing)
type AppEnv string

// SourceKind selects the messaging client used as the message source
// ENUM(bot,mtproto)
type SourceKind string
