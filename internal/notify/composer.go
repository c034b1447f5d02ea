// Package notify composes notification texts and sends the operator SMS on
// every patient write.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pediamatch/intake-service/internal/changestream"
	"github.com/pediamatch/intake-service/internal/clinic"
	"github.com/pediamatch/intake-service/internal/domain"
)

const (
	displayLayout = "2006-01-02 15:04"
	demoHeader    = "\n\nPediaMatch Demo\n\n"

	// ReferralSubject is the fixed bilingual subject of the hospital email.
	ReferralSubject = "Demande de rendez-vous - Hôpital de Montréal pour enfants / Appointment Request - Montreal Children's Hospital"
)

// Composer renders notification bodies. All dates are shown in Pacific time.
type Composer struct {
	physician string
	location  *time.Location
}

// NewComposer returns a composer naming physician as the requester.
func NewComposer(physician string) *Composer {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		loc = time.FixedZone("PST", -8*60*60)
	}
	return &Composer{physician: physician, location: loc}
}

// ComposeCreationMessage builds the operator SMS for a patient write. When the
// clinic is unknown (found == false) its fields render empty.
func (c *Composer) ComposeCreationMessage(p domain.Patient, info clinic.Info, found bool) string {
	if !found {
		info = clinic.Info{}
	}

	var b strings.Builder
	b.WriteString(demoHeader)
	fmt.Fprintf(&b, "%s is requesting a consultation at: %s for %s %s. Below is the information filled out by the user:\n\n",
		c.physician, info.Name, p.FirstName, p.LastName)

	b.WriteString("- Patient Information:\n")
	fmt.Fprintf(&b, "\t- Patient Name: %s %s\n", p.FirstName, p.LastName)
	fmt.Fprintf(&b, "\t- Guardian Email: %s\n", p.Email)
	fmt.Fprintf(&b, "\t- Guardian Phone Number: %s\n", p.PhoneNumber)
	fmt.Fprintf(&b, "\t- Patient Postal Code: %s\n\n", p.PostalCode)

	b.WriteString("- Clinic Information:\n")
	fmt.Fprintf(&b, "\t- Name: %s\n", info.Name)
	fmt.Fprintf(&b, "\t- Contact Email: %s\n", info.Email)
	fmt.Fprintf(&b, "\t- Address: %s\n\n", info.Address)

	b.WriteString("- Consultation Request Status:\n")
	fmt.Fprintf(&b, "\t- Consultation initial request date: %s PST\n", c.formatDate(p.EntryDate))
	fmt.Fprintf(&b, "\t- Consultation follow up date: %s PST\n", c.formatDate(p.FollowUpDate))
	fmt.Fprintf(&b, "\t- Consultation scheduled status: %s\n", strconv.FormatBool(p.ConsultationScheduled))
	return b.String()
}

// ComposeReplyConfirmation answers a reply that scheduled p's consultation.
func (c *Composer) ComposeReplyConfirmation(p domain.Patient) string {
	return demoHeader + "Updated consultation status for " + p.FullName() + "."
}

// ComposeReplyNotFound answers a reply naming no known patient.
func (c *Composer) ComposeReplyNotFound(name string) string {
	return "No patient found with name: " + name + "."
}

// ComposeReplyUnrecognized answers a reply that does not follow the expected format.
func (c *Composer) ComposeReplyUnrecognized() string {
	return "Sorry, we could not understand that message. Reply with: Appointment scheduled for, Patient Name: <first name>"
}

// ComposeReferralEmail renders the French/English appointment request sent to
// the hospital for a new patient.
func (c *Composer) ComposeReferralEmail(rec changestream.Record, clinicName string) (subject, body string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Cher/Chère %s,\n\n", clinicName)
	b.WriteString("J'espère que ce message vous trouve en bonne santé. Je vous écris au nom de l'Hôpital de Montréal pour enfants pour demander un rendez-vous avec un médecin de famille pour l'un de nos patients.\n\n")
	b.WriteString("Informations sur le patient :\n\n")
	fmt.Fprintf(&b, "Prénom : %s\nNom de famille : %s\nCode postal : %s\n\n", rec.PatientFirstName, rec.PatientLastName, rec.PatientPostalCode)
	b.WriteString("Informations sur le tuteur :\n\n")
	fmt.Fprintf(&b, "Prénom : %s\nNom de famille : %s\nNuméro de téléphone : %s\nCourriel : %s\n\n",
		rec.GuardianFirstName, rec.GuardianLastName, rec.GuardianPhoneNumber, rec.GuardianEmail)
	b.WriteString("Nous vous demandons de bien vouloir organiser un rendez-vous dès que possible et de nous informer des dates et heures disponibles. Notre priorité est de garantir que le patient reçoive des soins médicaux en temps opportun.\n\n")
	b.WriteString("Merci de votre attention et de votre coopération. N'hésitez pas à nous contacter pour toute information supplémentaire.\n\n")
	b.WriteString("Cordialement,\nHôpital de Montréal pour enfants\n\n")
	b.WriteString(strings.Repeat("-", 107) + "\n\n")

	fmt.Fprintf(&b, "Dear %s,\n\n", clinicName)
	b.WriteString("I hope this message finds you well. I am writing on behalf of Montreal Children's Hospital to request an appointment with a family doctor for one of our patients.\n\n")
	b.WriteString("Patient Information:\n\n")
	fmt.Fprintf(&b, "First Name: %s\nLast Name: %s\nPostal Code: %s\n\n", rec.PatientFirstName, rec.PatientLastName, rec.PatientPostalCode)
	b.WriteString("Guardian Information:\n\n")
	fmt.Fprintf(&b, "First Name: %s\nLast Name: %s\nPhone Number: %s\nEmail: %s\n\n",
		rec.GuardianFirstName, rec.GuardianLastName, rec.GuardianPhoneNumber, rec.GuardianEmail)
	b.WriteString("We kindly request you to arrange an appointment at your earliest convenience and inform us about the available dates and times. Our priority is to ensure that the patient receives timely and necessary medical care.\n\n")
	b.WriteString("Thank you for your attention and cooperation. Please let us know if you need any additional information.\n\n")
	b.WriteString("Best regards,\nMontreal Children's Hospital\n")

	return ReferralSubject, b.String()
}

func (c *Composer) formatDate(t time.Time) string {
	return t.In(c.location).Format(displayLayout)
}
