package notification

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING TABLE
// ══════════════════════════════════════════════════════════════════════════════
//
// One domain event produces one primary notification plus zero or more
// additional role-targeted copies. The table below is fixed: it is keyed by
// notification kind and resolves the extra recipients from the student the
// event concerns. Kinds absent from the table fan out to nobody beyond the
// primary recipient.

// RecipientResolver derives the additional recipients for a notification
// from its payload.
type RecipientResolver func(data Data) []Recipient

// routingTable maps each fanned-out kind to its resolver.
var routingTable = map[Kind]RecipientResolver{
	KindCaseCreated: func(data Data) []Recipient {
		return []Recipient{
			ScopedRecipient(RecipientTeacher, data.StudentID),
		}
	},
	KindActivityAssigned: func(data Data) []Recipient {
		return []Recipient{
			ScopedRecipient(RecipientPsychopedagogue, data.StudentID),
		}
	},
	KindStudentProgressUpdated: func(data Data) []Recipient {
		return []Recipient{
			ScopedRecipient(RecipientTeacher, data.StudentID),
			ScopedRecipient(RecipientPsychopedagogue, data.StudentID),
		}
	},
	KindEmotionalAlert: func(data Data) []Recipient {
		return []Recipient{
			ScopedRecipient(RecipientTeacher, data.StudentID),
			ScopedRecipient(RecipientPsychopedagogue, data.StudentID),
		}
	},
}

// AdditionalRecipients resolves the extra recipients for a notification of
// the given kind. An empty student ID yields no extra recipients: there is
// nobody to scope them to.
func AdditionalRecipients(kind Kind, data Data) []Recipient {
	resolver, ok := routingTable[kind]
	if !ok || data.StudentID == "" {
		return nil
	}
	return resolver(data)
}

// IsFannedOut reports whether the kind has routing table entries.
func IsFannedOut(kind Kind) bool {
	_, ok := routingTable[kind]
	return ok
}
