package notify

import (
	"fmt"

	"github.com/marniemm/jobsvc/pkg/models"
)

const dateLayout = "2006-01-02"

// Composer builds the transition notification emails. Every body restates the
// original request details after a separator so each email is self-contained.
type Composer struct {
	baseURL string
	from    string
}

func NewComposer(baseURL, from string) *Composer {
	return &Composer{baseURL: baseURL, from: from}
}

func (c *Composer) jobDetailURL(job *models.Job) string {
	return fmt.Sprintf("%s/jobs/%s", c.baseURL, job.ID)
}

// requestDetails is the shared closing section of every notification.
func (c *Composer) requestDetails(job *models.Job, agent *models.User) string {
	return fmt.Sprintf(
		"%s has made a new maintenance request.\n\n"+
			"Details of the job can be found at: %s\n\n"+
			"Number: %d\n\n"+
			"Date: %s\n\n"+
			"Address Details:\n\n%s\n\n"+
			"GPS Link:\n\n%s\n\n"+
			"Quote Request Details:\n\n%s\n\n"+
			"PS: This mail is sent from an unmonitored email address. "+
			"Please do not reply to this email.\n\n",
		agent.Username,
		c.jobDetailURL(job),
		job.Number,
		job.Date.Format(dateLayout),
		job.AddressDetails,
		job.GPSLink,
		job.QuoteRequestDetails,
	)
}

// originalRequestSection prefixes requestDetails with the separator used when
// a notification quotes the request rather than announcing it.
func (c *Composer) originalRequestSection(job *models.Job, agent *models.User) string {
	return "Details of the original request:\n\n" +
		"-----\n\n" +
		fmt.Sprintf("Subject: New maintenance request by %s\n\n", agent.Username) +
		c.requestDetails(job, agent)
}

// JobCreated notifies the contractor of a brand-new maintenance request.
func (c *Composer) JobCreated(job *models.Job, agent *models.User, contractor *models.User) Email {
	return Email{
		Subject: fmt.Sprintf("New maintenance request by %s", agent.Username),
		Body:    c.requestDetails(job, agent),
		From:    c.from,
		To:      []string{contractor.Email},
		CC:      []string{agent.Email},
	}
}

// InspectionCompleted notifies the agent that the contractor inspected the site.
func (c *Composer) InspectionCompleted(job *models.Job, agent *models.User, contractor *models.User) Email {
	body := fmt.Sprintf(
		"Marnie performed the inspection on %s. "+
			"A quote will be sent to you once it is ready.\n\n",
		job.DateOfInspection.Format(dateLayout),
	) + c.originalRequestSection(job, agent)

	return Email{
		Subject: "Marnie completed the inspection for your maintenance request",
		Body:    body,
		From:    c.from,
		To:      []string{agent.Email},
		CC:      []string{contractor.Email},
	}
}

// QuoteUploaded notifies the agent of a new or updated quote, with the quote
// PDF attached. updated selects the resubmission wording used after the agent
// rejected the previous quote.
func (c *Composer) QuoteUploaded(job *models.Job, agent *models.User, contractor *models.User, quote Attachment, updated bool) Email {
	subject := "Marnie uploaded a quote for your maintenance request"
	body := "Marnie uploaded a quote for a maintenance job. " +
		"The quote is attached to this email.\n\n"
	if updated {
		subject = "Marnie uploaded an updated quote for your job"
		body = "Marnie uploaded a new quote for a maintenance job. " +
			"The quote is attached to this email.\n\n"
	}

	return Email{
		Subject:     subject,
		Body:        body + c.originalRequestSection(job, agent),
		From:        c.from,
		To:          []string{agent.Email},
		CC:          []string{contractor.Email},
		Attachments: []Attachment{quote},
	}
}

// QuoteDecision notifies the contractor that the agent accepted or rejected
// the quote.
func (c *Composer) QuoteDecision(job *models.Job, agent *models.User, contractor *models.User, accepted bool) Email {
	verb := "reject"
	if accepted {
		verb = "accept"
	}

	body := fmt.Sprintf(
		"Agent %s has %sed the quote for a maintenance job.\n\n"+
			"Details of the job can be found at: %s\n\n",
		agent.Username, verb, c.jobDetailURL(job),
	) + c.originalRequestSection(job, agent)

	return Email{
		Subject: fmt.Sprintf("Quote %sed by %s", verb, agent.Username),
		Body:    body,
		From:    c.from,
		To:      []string{contractor.Email},
		CC:      []string{agent.Email},
	}
}

// DepositPOPUploaded notifies the contractor of the agent's deposit proof of
// payment, with the POP attached.
func (c *Composer) DepositPOPUploaded(job *models.Job, agent *models.User, contractor *models.User, pop Attachment) Email {
	body := fmt.Sprintf(
		"Agent %s added a Deposit POP to the maintenance request. "+
			"The POP is attached to this email.\n\n",
		agent.Username,
	) + c.originalRequestSection(job, agent)

	return Email{
		Subject:     fmt.Sprintf("Agent %s added a Deposit POP to the maintenance request", agent.Username),
		Body:        body,
		From:        c.from,
		To:          []string{contractor.Email},
		CC:          []string{agent.Email},
		Attachments: []Attachment{pop},
	}
}

// OnsiteWorkCompleted notifies the agent that the physical work is done.
func (c *Composer) OnsiteWorkCompleted(job *models.Job, agent *models.User, contractor *models.User) Email {
	body := fmt.Sprintf(
		"Marnie completed the onsite maintenance work on %s. "+
			"An email with further documentation will be sent later.\n\n",
		job.OnsiteWorkDate.Format(dateLayout),
	) + c.originalRequestSection(job, agent)

	return Email{
		Subject: "Marnie completed onsite work on a maintenance job",
		Body:    body,
		From:    c.from,
		To:      []string{agent.Email},
		CC:      []string{contractor.Email},
	}
}

// DocumentationSubmitted notifies the agent of the final job documentation,
// with the invoice and completion photos attached.
func (c *Composer) DocumentationSubmitted(job *models.Job, agent *models.User, contractor *models.User, invoice Attachment, photos []Attachment) Email {
	body := "Marnie submitted the documentation for a completed maintenance job. " +
		"The invoice and completion photos are attached to this email.\n\n"
	if job.Comments != "" {
		body += fmt.Sprintf("Comments on the job:\n\n%s\n\n", job.Comments)
	}
	body += c.originalRequestSection(job, agent)

	return Email{
		Subject:     "Marnie completed a maintenance job",
		Body:        body,
		From:        c.from,
		To:          []string{agent.Email},
		CC:          []string{contractor.Email},
		Attachments: append([]Attachment{invoice}, photos...),
	}
}

// FinalPOPUploaded notifies the contractor of the agent's final payment proof
// of payment, with the POP attached.
func (c *Composer) FinalPOPUploaded(job *models.Job, agent *models.User, contractor *models.User, pop Attachment) Email {
	body := fmt.Sprintf(
		"Agent %s added a Final Payment POP to the maintenance request. "+
			"The POP is attached to this email.\n\n",
		agent.Username,
	) + c.originalRequestSection(job, agent)

	return Email{
		Subject:     fmt.Sprintf("Agent %s added a Final Payment POP to the maintenance request", agent.Username),
		Body:        body,
		From:        c.from,
		To:          []string{contractor.Email},
		CC:          []string{agent.Email},
		Attachments: []Attachment{pop},
	}
}
