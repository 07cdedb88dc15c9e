package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"roomsplit/internal/core"
	"roomsplit/internal/media"
)

const (
	maxJSONBody      = 1 << 20
	multipartMemory  = 4 << 20
	sniffLen         = 512
	receiptFormField = "receipt"
	avatarFormField  = "avatar"
)

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			return err
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	if dec.More() {
		return badRequest("invalid JSON body: trailing data")
	}
	return nil
}

// amountField accepts an amount written either as a JSON number or as a
// decimal string.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("amount must be a number or a decimal string")
	}
	*a = amountField(n.String())
	return nil
}

// budget parses a as a budget, where zero means none.
func (a amountField) budget(field string) (core.Money, error) {
	m, err := core.ParseBudget(string(a))
	if err != nil {
		return core.Money{}, &core.ValidationError{Field: field, Message: "budget must be a non-negative amount"}
	}
	return m, nil
}

// expenseForm is a parsed expense create or edit request.
type expenseForm struct {
	Draft       core.ExpenseDraft
	Receipt     *media.File
	RemoveImage bool

	cleanup func()
}

// Close releases the uploaded file and any temporary form files.
func (f *expenseForm) Close() {
	if f.cleanup != nil {
		f.cleanup()
	}
}

// parseExpenseForm reads a multipart or urlencoded expense form with an
// optional receipt image, validating it at the request boundary.
func parseExpenseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*expenseForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := parseForm(r); err != nil {
		return nil, err
	}

	form := &expenseForm{
		Draft: core.ExpenseDraft{
			Shop:  sanitizeInput(r.FormValue("shop")),
			Items: sanitizeInput(r.FormValue("items")),
		},
		RemoveImage: parseBool(r.FormValue("removeImage")),
	}
	form.cleanup = func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	ok := false
	defer func() {
		if !ok {
			form.Close()
		}
	}()

	if v := strings.TrimSpace(r.FormValue("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return nil, &core.ValidationError{Field: "date", Message: "date must be formatted as YYYY-MM-DD"}
		}
		form.Draft.Date = d
	}
	if v := strings.TrimSpace(r.FormValue("cost")); v != "" {
		cost, err := core.ParseMoney(v)
		if err != nil {
			return nil, &core.ValidationError{Field: "cost", Message: "cost must be at least 0.01"}
		}
		form.Draft.Cost = cost
	}
	if err := form.Draft.Validate(); err != nil {
		return nil, err
	}

	f, err := imageUpload(r, receiptFormField)
	if err != nil {
		return nil, err
	}
	if f != nil {
		form.Receipt = &f.File
		prev := form.cleanup
		form.cleanup = func() {
			f.close()
			prev()
		}
	}
	ok = true
	return form, nil
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if ct == "multipart/form-data" {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var sizeErr *http.MaxBytesError
		if errors.As(err, &sizeErr) {
			return err
		}
		return badRequest("invalid form body: " + err.Error())
	}
	return nil
}

type upload struct {
	media.File
	close func()
}

// imageUpload returns the image posted in field, or nil when the field is
// absent. The content type is sniffed rather than trusted.
func imageUpload(r *http.Request, field string) (*upload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, badRequest("invalid " + field + " upload: " + err.Error())
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		file.Close()
		return nil, badRequest("could not read " + field + " upload")
	}
	head = head[:n]
	if n == 0 {
		file.Close()
		return nil, &core.ValidationError{Field: field, Message: "uploaded file is empty"}
	}
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		file.Close()
		return nil, &core.ValidationError{Field: field, Message: "only image uploads are accepted"}
	}

	return &upload{
		File: media.File{
			Name:        fileName(header),
			ContentType: contentType,
			Body:        io.MultiReader(bytes.NewReader(head), file),
		},
		close: func() { file.Close() },
	}, nil
}

func fileName(h *multipart.FileHeader) string {
	if name := strings.TrimSpace(h.Filename); name != "" {
		return name
	}
	return "upload"
}

// parseID reads the {id} path value.
func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid expense id")
	}
	return id, nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(v))
	return b
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// splitList parses a comma separated query value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
