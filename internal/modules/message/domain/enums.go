//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// ChatKind represents the kind of conversation a message arrived in
// ENUM(private,group,supergroup,channel)
type ChatKind string
