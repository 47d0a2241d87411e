//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// Status represents the lifecycle state of a delayed task
// ENUM(pending,sent,failed)
type Status string
