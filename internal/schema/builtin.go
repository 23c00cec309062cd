package schema

import "docextract/internal/domain"

func text(name string, weight float64, required bool, desc string) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: domain.KindText, Weight: weight, Required: required, Description: desc}
}

func kind(k domain.ValueKind, name string, weight float64, required bool, desc string) domain.FieldSpec {
	return domain.FieldSpec{Name: name, Kind: k, Weight: weight, Required: required, Description: desc}
}

// InvoiceSchema is the built-in invoice field set.
func InvoiceSchema() domain.FieldSchema {
	return domain.FieldSchema{
		DocType: domain.DocTypeInvoice,
		Fields: []domain.FieldSpec{
			text("invoice_number", 1.0, true, "invoice or bill number"),
			kind(domain.KindDate, "date", 0.9, true, "invoice issue date"),
			kind(domain.KindDate, "due_date", 0.5, false, "payment due date"),
			text("vendor_name", 1.0, true, "seller or vendor name"),
			text("vendor_address", 0.6, false, "seller address"),
			kind(domain.KindEmail, "vendor_email", 0.4, false, "seller email address"),
			kind(domain.KindPhone, "vendor_phone", 0.4, false, "seller phone number"),
			text("customer_name", 0.8, false, "buyer or customer name"),
			text("customer_address", 0.6, false, "buyer address"),
			{Name: "line_items", Kind: domain.KindAmount, Weight: 0.7, Repeated: true,
				Description: "amount of each line item, reported as line_items[0], line_items[1], ..."},
			kind(domain.KindAmount, "subtotal", 0.8, false, "amount before tax"),
			kind(domain.KindAmount, "tax", 0.7, false, "total tax amount"),
			kind(domain.KindAmount, "total", 1.0, true, "grand total due"),
		},
	}
}

// MedicalBillSchema is the built-in medical bill field set.
func MedicalBillSchema() domain.FieldSchema {
	return domain.FieldSchema{
		DocType: domain.DocTypeMedicalBill,
		Fields: []domain.FieldSpec{
			text("patient_name", 1.0, true, "patient full name"),
			text("patient_id", 0.6, false, "patient or account identifier"),
			kind(domain.KindDate, "date_of_service", 0.9, true, "date the service was provided"),
			text("provider_name", 1.0, true, "hospital, clinic or physician name"),
			text("provider_address", 0.5, false, "provider address"),
			kind(domain.KindPhone, "provider_phone", 0.4, false, "provider phone number"),
			text("diagnosis_codes", 0.5, false, "ICD diagnosis codes, comma separated"),
			text("procedure_codes", 0.5, false, "CPT procedure codes, comma separated"),
			kind(domain.KindAmount, "charges", 1.0, true, "total charges before adjustments"),
			kind(domain.KindAmount, "insurance_adjustments", 0.6, false, "contractual or insurance adjustments"),
			kind(domain.KindAmount, "payments", 0.6, false, "payments already received"),
			kind(domain.KindAmount, "insurance_paid", 0.6, false, "amount paid by insurance"),
			kind(domain.KindAmount, "patient_responsibility", 0.7, false, "amount owed by the patient"),
			kind(domain.KindAmount, "balance_due", 0.9, false, "remaining balance"),
		},
	}
}

// PrescriptionSchema is the built-in prescription field set.
func PrescriptionSchema() domain.FieldSchema {
	return domain.FieldSchema{
		DocType: domain.DocTypePrescription,
		Fields: []domain.FieldSpec{
			text("patient_name", 1.0, true, "patient full name"),
			text("prescriber_name", 1.0, true, "prescribing physician"),
			text("medication_name", 1.0, true, "drug name"),
			text("dosage", 0.9, false, "strength and directions"),
			text("quantity", 0.6, false, "quantity dispensed"),
			text("refills", 0.5, false, "number of refills allowed"),
			kind(domain.KindDate, "date_prescribed", 0.7, false, "date written"),
			text("pharmacy_name", 0.4, false, "dispensing pharmacy"),
			kind(domain.KindPhone, "pharmacy_phone", 0.3, false, "pharmacy phone number"),
			text("rx_number", 0.6, false, "prescription number"),
		},
	}
}

// DefaultGeneric is the fallback schema for documents of unknown type.
func DefaultGeneric() domain.FieldSchema {
	return domain.FieldSchema{
		DocType: domain.DocTypeUnknown,
		Fields: []domain.FieldSpec{
			kind(domain.KindDate, "document_date", 0.6, false, "main date on the document"),
			text("reference_number", 0.6, false, "any document or reference number"),
			text("issuer_name", 0.7, false, "organization or person issuing the document"),
			text("recipient_name", 0.6, false, "person or organization the document is addressed to"),
			kind(domain.KindEmail, "email", 0.3, false, "email address"),
			kind(domain.KindPhone, "phone", 0.3, false, "phone number"),
			kind(domain.KindAmount, "total_amount", 0.7, false, "main monetary amount"),
		},
	}
}

// Builtin returns the built-in schemas for every known doc type.
func Builtin() map[domain.DocType]domain.FieldSchema {
	return map[domain.DocType]domain.FieldSchema{
		domain.DocTypeInvoice:      InvoiceSchema(),
		domain.DocTypeMedicalBill:  MedicalBillSchema(),
		domain.DocTypePrescription: PrescriptionSchema(),
	}
}
