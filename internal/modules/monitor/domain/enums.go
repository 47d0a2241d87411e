//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// Mode selects how messages are acquired from the source
// ENUM(push,poll)
type Mode string
