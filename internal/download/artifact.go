// Package download delivers generated documents to the user: as an HTTP
// attachment in server mode, or as a file in the output directory in stdio
// mode. Generation itself never touches the network or the disk.
package download

import (
	"context"
	"fmt"
)

const (
	// DefaultFileName is the name every attestation is offered under
	DefaultFileName = "attestation.pdf"
	// MIMETypePDF is the media type of generated documents
	MIMETypePDF = "application/pdf"
)

// Artifact is a generated document held in memory
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// NewPDF wraps PDF bytes under the default file name
func NewPDF(data []byte) *Artifact {
	return &Artifact{
		Name:     DefaultFileName,
		MIMEType: MIMETypePDF,
		Data:     data,
	}
}

// Size returns the payload length in bytes
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Validate checks the artifact can be delivered
func (a *Artifact) Validate() error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}
	if a.Name == "" {
		return fmt.Errorf("artifact name cannot be empty")
	}
	if len(a.Data) == 0 {
		return fmt.Errorf("artifact %s is empty", a.Name)
	}
	return nil
}

// Sink is the boundary that hands an artifact over to the user
type Sink interface {
	Deliver(ctx context.Context, a *Artifact) error
}
