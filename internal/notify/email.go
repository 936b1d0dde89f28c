package notify

// Attachment is a file carried on an outgoing email.
type Attachment struct {
	Filename string
	Data     []byte
	MIMEType string
}

const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
)

// Email is a fully composed outgoing message. The transport only delivers it;
// all content decisions happen in the Composer.
type Email struct {
	Subject     string
	Body        string
	From        string
	To          []string
	CC          []string
	Attachments []Attachment
}
