package interfaces

import "context"

type Notifier interface {
	Alert(ctx context.Context, message string) error
}
