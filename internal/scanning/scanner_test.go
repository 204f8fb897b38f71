package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"golang.org/x/time/rate"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

var _ = Describe("Scanner", func() {
	var (
		response  string
		modelErr  error
		seenParts []Part
		scanner   *Scanner
		data      *ReceiptData
		err       error
	)

	BeforeEach(func() {
		response = `{"totalAmount": 19.9, "merchantName": "Farmacia", "category": "health"}`
		modelErr = nil
		seenParts = nil
		model := ModelFunc(func(ctx context.Context, parts ...Part) (string, error) {
			seenParts = parts
			return response, modelErr
		})
		scanner = NewScannerWithClock(model, fixedClock{now: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(context.Background(), []byte("png bytes"), "image/png")
	})

	When("the model answers with receipt JSON", func() {
		It("should return normalized data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Total).To(Equal(Cents(1990)))
			Expect(data.Category).To(Equal(CategoryHealth))
			Expect(data.Date).To(Equal("2024-05-01"))
		})

		It("should send the prompt followed by the image", func() {
			Expect(seenParts).To(HaveLen(2))
			Expect(seenParts[0].Text).To(Equal(receiptScanPrompt))
			Expect(seenParts[1].IsImage()).To(BeTrue())
			Expect(seenParts[1].MIMEType).To(Equal("image/png"))
			Expect(seenParts[1].Data).To(Equal([]byte("png bytes")))
		})
	})

	When("the model fails", func() {
		BeforeEach(func() {
			modelErr = errors.New("quota exceeded")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(modelErr))
		})
	})

	When("the model answers without JSON", func() {
		BeforeEach(func() {
			response = "sorry"
		})

		It("returns an ExtractionFormatError", func() {
			var formatErr *ExtractionFormatError
			Expect(errors.As(err, &formatErr)).To(BeTrue())
			Expect(formatErr.Excerpt).To(Equal("sorry"))
		})
	})
})

var _ = Describe("prepareImageData", func() {
	It("passes PNG data through untouched", func() {
		data, mimeType, converted, err := prepareImageData([]byte("png"), " IMAGE/PNG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("png")))
		Expect(mimeType).To(Equal("image/png"))
		Expect(converted).To(BeFalse())
	})

	It("rejects data it cannot decode", func() {
		_, _, _, err := prepareImageData([]byte("definitely not an image"), "image/jpeg")
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})

	It("detects HEIC by its ftyp brand", func() {
		header := []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'}
		Expect(isHEIC(header, "application/octet-stream")).To(BeTrue())
		Expect(isHEIC([]byte("short"), "image/jpeg")).To(BeFalse())
		Expect(isHEIC(nil, "image/heif")).To(BeTrue())
	})
})

var _ = Describe("Ollama", func() {
	var (
		server *ghttp.Server
		model  *Ollama
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		model, err = NewOllama(server.URL()+"/", "llava", 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:  "llava",
					Stream: false,
					Messages: []ollamaMessage{
						{Role: "system", Content: ollamaSystemPrompt},
						{Role: "user", Content: "read this", Images: []string{base64.StdEncoding.EncodeToString([]byte("img"))}},
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"totalAmount": 1}`},
					Done:    true,
				}),
			))
		})

		It("returns the assistant message", func() {
			text, err := model.GenerateContent(context.Background(), TextPart("read this"), ImagePart([]byte("img"), "image/png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"totalAmount": 1}`))
		})
	})

	When("the server fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not found"))
		})

		It("returns an error with the body", func() {
			_, err := model.GenerateContent(context.Background(), TextPart("hi"))
			Expect(err).To(MatchError(ContainSubstring("model not found")))
		})
	})

	When("the server is slower than the timeout", func() {
		BeforeEach(func() {
			var err error
			model, err = NewOllama(server.URL(), "llava", 50*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			server.AppendHandlers(func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(5 * time.Second):
				}
			})
		})

		It("reports a deadline error", func() {
			_, err := model.GenerateContent(context.Background(), TextPart("hi"))
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})
	})
})

var _ = Describe("RateLimited", func() {
	It("returns the model unchanged without a limiter", func() {
		model := ModelFunc(func(ctx context.Context, parts ...Part) (string, error) { return "ok", nil })
		Expect(RateLimited(model, nil)).To(BeAssignableToTypeOf(model))
	})

	It("stops waiting when the context is cancelled", func() {
		calls := 0
		model := RateLimited(ModelFunc(func(ctx context.Context, parts ...Part) (string, error) {
			calls++
			return "ok", nil
		}), rate.NewLimiter(rate.Every(time.Hour), 1))

		_, err := model.GenerateContent(context.Background(), TextPart("first"))
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = model.GenerateContent(ctx, TextPart("second"))
		Expect(err).To(HaveOccurred())
		Expect(calls).To(Equal(1))
	})
})
