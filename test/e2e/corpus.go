// Package e2e provides end-to-end tests with a multi-topic corpus and query cases.
package e2e

import (
	"fmt"

	"github.com/clinbrief/clinbrief/internal/models"
)

// CorpusDocument is a document entry in the e2e corpus.
type CorpusDocument struct {
	ID       string
	Title    string
	Abstract string
	Category string
}

// QueryCase defines a retrieval query and the document ID(s) that must appear
// in the results. At least one of ExpectedDocIDs must be present.
type QueryCase struct {
	Query          string
	ExpectedDocIDs []string
	Description    string
}

// Corpus holds documents and query cases for e2e tests.
type Corpus struct {
	Documents []CorpusDocument
	Cases     []QueryCase
}

// BuildCorpus returns a corpus of clinical abstracts with varied content.
// Each document carries a unique signature phrase so queries can assert the
// correct document comes back.
func BuildCorpus() *Corpus {
	topics := []struct {
		title    string
		phrase   string
		abstract string
		category string
	}{
		{"Metformin Monotherapy", "metformin glycemic control", "Metformin is first-line therapy for type 2 diabetes. Metformin glycemic control reduces HbA1c by roughly one percent.", "rct"},
		{"SGLT2 Inhibitors", "SGLT2 inhibitor heart failure", "SGLT2 inhibitors lower glucose via renal excretion. SGLT2 inhibitor heart failure outcomes improved in large trials.", "rct"},
		{"Statin Prevention", "statin cardiovascular prevention", "Statins lower LDL cholesterol. Statin cardiovascular prevention reduces major vascular events.", "meta_analysis"},
		{"Warfarin Dosing", "warfarin INR monitoring", "Warfarin requires individualized dosing. Warfarin INR monitoring keeps patients in the therapeutic range.", "clinical_guideline"},
		{"DOAC Comparison", "DOAC stroke prevention", "Direct oral anticoagulants simplify therapy. DOAC stroke prevention is noninferior to warfarin in atrial fibrillation.", "meta_analysis"},
		{"ACE Inhibitors", "ACE inhibitor hypertension", "ACE inhibitors block angiotensin conversion. ACE inhibitor hypertension treatment protects renal function.", "clinical_guideline"},
		{"Beta Blockers", "beta blocker heart rate", "Beta blockers reduce myocardial oxygen demand. Beta blocker heart rate control benefits heart failure patients.", "rct"},
		{"Aspirin Primary Prevention", "aspirin bleeding risk", "Low-dose aspirin inhibits platelet aggregation. Aspirin bleeding risk may outweigh benefit in primary prevention.", "meta_analysis"},
		{"Insulin Titration", "insulin basal titration", "Basal insulin supplements endogenous secretion. Insulin basal titration targets fasting glucose.", "clinical_guideline"},
		{"GLP-1 Agonists", "GLP-1 agonist weight loss", "GLP-1 receptor agonists slow gastric emptying. GLP-1 agonist weight loss averages several kilograms.", "rct"},
		{"Proton Pump Inhibitors", "PPI gastric acid suppression", "PPIs block the gastric proton pump. PPI gastric acid suppression heals erosive esophagitis.", "clinical_guideline"},
		{"Antibiotic Stewardship", "antibiotic resistance stewardship", "Overuse drives resistance. Antibiotic resistance stewardship programs shorten treatment duration.", "clinical_guideline"},
		{"Pneumonia Severity", "pneumonia CURB-65 score", "Severity scores guide admission decisions. Pneumonia CURB-65 score estimates 30-day mortality.", "observational"},
		{"Sepsis Bundles", "sepsis lactate resuscitation", "Early recognition improves sepsis outcomes. Sepsis lactate resuscitation bundles lower mortality.", "rct"},
		{"COPD Exacerbation", "COPD bronchodilator exacerbation", "Exacerbations accelerate lung function decline. COPD bronchodilator exacerbation therapy includes steroids.", "clinical_guideline"},
		{"Asthma Controllers", "asthma inhaled corticosteroid", "Controller therapy prevents attacks. Asthma inhaled corticosteroid use reduces exacerbation frequency.", "meta_analysis"},
		{"Osteoporosis Screening", "osteoporosis bone density DXA", "Fracture risk rises with age. Osteoporosis bone density DXA screening targets postmenopausal women.", "clinical_guideline"},
		{"Bisphosphonate Therapy", "bisphosphonate fracture reduction", "Bisphosphonates inhibit bone resorption. Bisphosphonate fracture reduction persists for years after stopping.", "rct"},
		{"Depression Screening", "depression PHQ-9 screening", "Primary care screening finds untreated cases. Depression PHQ-9 screening has validated cutoffs.", "observational"},
		{"SSRI First Line", "SSRI major depression", "SSRIs are first-line antidepressants. SSRI major depression response takes four to six weeks.", "meta_analysis"},
		{"CKD Staging", "chronic kidney disease eGFR staging", "Staging guides nephrology referral. Chronic kidney disease eGFR staging uses albuminuria categories.", "clinical_guideline"},
		{"Dialysis Timing", "dialysis initiation timing", "Earlier start shows no survival benefit. Dialysis initiation timing should follow symptoms, not eGFR alone.", "rct"},
		{"Thyroid Replacement", "levothyroxine TSH target", "Hypothyroidism requires lifelong replacement. Levothyroxine TSH target guides dose adjustment.", "clinical_guideline"},
		{"Gout Management", "gout urate lowering allopurinol", "Flares recur without urate control. Gout urate lowering allopurinol targets serum urate below six.", "clinical_guideline"},
		{"Migraine Prophylaxis", "migraine CGRP prophylaxis", "Frequent attacks warrant prevention. Migraine CGRP prophylaxis antibodies reduce monthly headache days.", "rct"},
		{"Stroke Thrombolysis", "stroke thrombolysis window", "Time is brain in acute stroke. Stroke thrombolysis window extends with imaging selection.", "meta_analysis"},
		{"Anticoagulation Reversal", "anticoagulation reversal bleeding", "Major bleeding needs rapid reversal. Anticoagulation reversal bleeding protocols differ by agent.", "clinical_guideline"},
		{"Delirium Prevention", "delirium prevention elderly", "Hospitalized elders are at risk. Delirium prevention elderly bundles emphasize orientation and sleep.", "observational"},
		{"Fall Risk Assessment", "fall risk gait assessment", "Falls cause major morbidity. Fall risk gait assessment identifies candidates for intervention.", "observational"},
		{"Vaccination Schedules", "influenza vaccination elderly", "Annual vaccination reduces complications. Influenza vaccination elderly patients benefit most from high-dose formulations.", "meta_analysis"},
		{"Smoking Cessation", "varenicline smoking cessation", "Pharmacotherapy doubles quit rates. Varenicline smoking cessation outperforms nicotine replacement.", "rct"},
		{"Obesity Pharmacotherapy", "obesity pharmacotherapy semaglutide", "Lifestyle alone rarely sustains loss. Obesity pharmacotherapy semaglutide achieves double-digit weight reduction.", "rct"},
		{"Hypertension Targets", "blood pressure target intensive", "Lower targets reduce events. Blood pressure target intensive control benefits high-risk patients.", "rct"},
		{"Lipid Panels", "lipid panel nonfasting", "Fasting is usually unnecessary. Lipid panel nonfasting measurement suffices for risk estimation.", "clinical_guideline"},
		{"Colorectal Screening", "colonoscopy colorectal screening", "Screening prevents cancer deaths. Colonoscopy colorectal screening intervals depend on findings.", "clinical_guideline"},
		{"Breast Cancer Screening", "mammography screening interval", "Screening trade-offs vary by age. Mammography screening interval recommendations differ across guidelines.", "meta_analysis"},
	}

	docs := make([]CorpusDocument, 0, len(topics))
	for i, tp := range topics {
		docs = append(docs, CorpusDocument{
			ID:       fmt.Sprintf("doc-%03d", i+1),
			Title:    tp.title,
			Abstract: tp.abstract,
			Category: tp.category,
		})
	}

	cases := make([]QueryCase, 0, len(topics))
	for i, tp := range topics {
		cases = append(cases, QueryCase{
			Query:          tp.phrase,
			ExpectedDocIDs: []string{docs[i].ID},
			Description:    tp.title,
		})
	}
	return &Corpus{Documents: docs, Cases: cases}
}

// ToDocumentInputs converts the corpus documents to ingestion inputs.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	inputs := make([]*models.DocumentInput, 0, len(c.Documents))
	for _, d := range c.Documents {
		inputs = append(inputs, &models.DocumentInput{
			ID:       d.ID,
			Title:    d.Title,
			Abstract: d.Abstract,
			Category: d.Category,
		})
	}
	return inputs
}
