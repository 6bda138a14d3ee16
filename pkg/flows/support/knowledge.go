package support

import (
	"fmt"
	"strings"
)

// Topics a support question is classified into.
const (
	TopicHealth    = "health_insurance"
	TopicVehicle   = "vehicle_insurance"
	TopicCompany   = "company_info"
	TopicClaims    = "claims"
	TopicGeneral   = "general_help"
	TopicSatisfied = "satisfied"
)

var topics = []string{TopicHealth, TopicVehicle, TopicCompany, TopicClaims, TopicGeneral, TopicSatisfied}

const topicInstruction = "You are a support query classifier. Categories: " +
	"health_insurance (questions about health insurance), " +
	"vehicle_insurance (questions about vehicle, car or bike insurance), " +
	"company_info (questions about InsurAI, its services and benefits), " +
	"claims (questions about the claim process), " +
	"general_help (general questions, greetings, unclear queries), " +
	"satisfied (the user seems satisfied or wants to end the conversation)."

const companyAbout = "InsurAI is your friendly neighborhood insurance company that actually gets it. " +
	"We've been helping families and individuals protect what matters most to them for over a decade. " +
	"We use smart technology to make insurance simple and affordable, but we never forget there's a real person behind every policy. " +
	"Our team is here 24/7 because life doesn't happen on a schedule. " +
	"We're licensed across India and have helped over 2 million customers find the right coverage. " +
	"When you need us most, during a claim, we're known for being fast, fair and hassle-free."

const companyMission = "We believe everyone deserves great insurance without the headaches. " +
	"Our mission is to make insurance so simple and trustworthy that you actually feel good about having it."

var companyBenefits = []string{
	"24/7 customer support - real people, not bots",
	"Super fast claim processing - most claims settled within 48 hours",
	"No hidden fees or surprises - what you see is what you pay",
	"Easy online policy management through our app",
	"Cashless service network across 10,000+ hospitals and garages",
	"Free annual health checkups for health insurance members",
	"Roadside assistance anywhere in India for vehicle insurance",
}

// primer explains one product line.
type primer struct {
	title, whatIs, whyNeed, covers, kinds string
}

var primers = map[string]primer{
	TopicHealth: {
		title:   "Health Insurance Info",
		whatIs:  "Health insurance is basically your safety net for medical expenses. You pay a small amount every month, and if you ever get sick or injured, we take care of the big hospital bills. It covers everything from doctor visits to surgeries to medicines.",
		whyNeed: "Medical costs have gone crazy expensive. A simple surgery can cost lakhs. Without insurance, one medical emergency could wipe out your savings. With insurance, you get treatment at the best hospitals without worrying about money.",
		covers:  "Most health plans cover hospitalization, surgeries, medicines, doctor consultations, diagnostic tests, and even ambulance costs. Some also include dental care, maternity benefits, and mental health support.",
		kinds:   "Family plans cover your whole family under one policy and are usually cheaper. Individual plans are just for you. Senior citizen plans are designed for older folks with their specific health needs.",
	},
	TopicVehicle: {
		title:   "Vehicle Insurance Info",
		whatIs:  "Vehicle insurance protects you financially if something happens to your car or bike. It's required by law in India: you can't legally drive without at least basic coverage.",
		whyNeed: "Accidents happen, theft happens, natural disasters happen. Without insurance, you'd pay for repairs or replacement yourself, and if you hurt someone else you could face huge legal costs. Insurance handles all of that.",
		covers:  "Third-party insurance (the minimum legal requirement) covers damage you cause to others. Comprehensive insurance also covers damage to your own vehicle from accidents, theft, fire, floods, etc.",
		kinds:   "Third-party is the bare minimum and covers others but not your vehicle. Comprehensive covers everything including your own car. Zero depreciation means you get full value for parts, not reduced for wear and tear.",
	},
}

// Knowledge returns the background the answer generator gets for a topic.
func Knowledge(topic string) string {
	if topic == TopicCompany {
		return fmt.Sprintf("Company Info: %s\nMission: %s\nKey Benefits: %s",
			companyAbout, companyMission, strings.Join(companyBenefits, ", "))
	}
	if p, ok := primers[topic]; ok {
		return fmt.Sprintf("%s:\nWhat it is: %s\nWhy you need it: %s\nWhat it covers: %s\nTypes: %s",
			p.title, p.whatIs, p.whyNeed, p.covers, p.kinds)
	}
	return "General insurance and company support information available."
}
