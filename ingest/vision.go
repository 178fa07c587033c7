package ingest

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// Describer produces a completion from a message sequence. The chat
// orchestrator satisfies it, so image description rides the same fallback
// chain as answering.
type Describer interface {
	Complete(ctx context.Context, msgs []types.Message) (*types.AnswerResult, error)
}

const describePrompt = "Describe the contents of this image in detail. " +
	"Transcribe any visible text verbatim. Respond with the description only."

// ImageExtractor turns an image into indexable text by asking a
// vision-capable backend to describe it.
type ImageExtractor struct {
	describer Describer
}

// NewImageExtractor creates an extractor backed by the given describer.
func NewImageExtractor(describer Describer) *ImageExtractor {
	return &ImageExtractor{describer: describer}
}

// Extract sends the image inline and returns the model's description.
func (e *ImageExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	mime, ok := mimeByExt[lowerExt(filename)]
	if !ok {
		return "", fmt.Errorf("no media type for %q", filename)
	}

	msg := types.NewUserMessage(describePrompt).WithImages([]types.ImageContent{{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}})
	result, err := e.describer.Complete(ctx, []types.Message{msg})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}
