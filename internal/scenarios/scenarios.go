// Copyright 2025 The Troupe Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scenarios ships a built-in library of demonstration workflows:
// four-phase agent collaborations over a user-supplied topic. Each phase
// threads the outputs of earlier phases into its own, so the transcripts
// read as a hand-off between specialists.
package scenarios

import (
	"troupe/pkg/errors"
	"troupe/pkg/workflow"
)

// Info describes one library entry for `troupe scenarios`.
type Info struct {
	Key       string
	Title     string
	TopicHint string
	Agents    []string
}

// phase is one step of a scenario before lowering into a Definition.
type phase struct {
	id     string
	name   string
	agent  string
	output string
	tools  []workflow.ToolDefinition
}

type scenario struct {
	key       string
	title     string
	topicHint string
	phases    []phase
}

// library holds the built-in scenarios in display order.
var library = []scenario{
	{
		key:       "conference",
		title:     "3-Day Conference Agenda Planning",
		topicHint: "conference topic, e.g. 'AI & Machine Learning'",
		phases: []phase{
			{
				id:    "research",
				name:  "Research & Requirements",
				agent: "Conference Researcher",
				output: "Requirements for a 3-day conference on {{.inputs.topic}}: " +
					"target audience of practitioners and decision makers, main themes drawn from " +
					"current {{.inputs.topic}} developments, a mix of keynotes, workshops and panels, " +
					"structured networking slots, and venue logistics sized for parallel tracks.",
				tools: []workflow.ToolDefinition{
					{Name: "web_search", Calls: 2, Input: "conference landscape"},
				},
			},
			{
				id:    "agenda",
				name:  "Agenda Structure",
				agent: "Agenda Designer",
				output: "Day-by-day agenda built on the research ({{.steps.research.output}}): " +
					"day one opens with a keynote and foundation sessions, day two runs parallel " +
					"deep-dive tracks with workshop blocks, day three closes with applied case " +
					"studies, a panel, and a wrap-up keynote. Breaks every 90 minutes.",
			},
			{
				id:    "content",
				name:  "Content Planning",
				agent: "Content Strategist",
				output: "Session content for the agenda ({{.steps.agenda.output}}): " +
					"named session topics per track, speaker profiles to recruit, hands-on " +
					"workshop formats, and interactive activities including lightning talks " +
					"and a closing unconference hour.",
			},
			{
				id:    "review",
				name:  "Final Review",
				agent: "Conference Reviewer",
				output: "Review of the full plan ({{.steps.content.output}}): " +
					"recommendation one, confirm headline speakers early; recommendation two, " +
					"protect unstructured networking time; recommendation three, rehearse AV and " +
					"room transitions. Critical success factor: a single owner per track.",
			},
		},
	},
	{
		key:       "marketing",
		title:     "Marketing Strategy Design",
		topicHint: "product name, e.g. 'Smart Home Assistant'",
		phases: []phase{
			{
				id:    "analysis",
				name:  "Market Analysis",
				agent: "Market Analyst",
				output: "Market analysis for {{.inputs.topic}}: early-adopter and mainstream " +
					"customer segments, a competitive landscape of incumbents and fast followers, " +
					"trends favoring {{.inputs.topic}}-class products, and an opening in the " +
					"mid-market segment.",
				tools: []workflow.ToolDefinition{
					{Name: "web_search", Calls: 3, Input: "market sizing"},
				},
			},
			{
				id:    "strategy",
				name:  "Strategy Development",
				agent: "Marketing Strategist",
				output: "Strategy grounded in the analysis ({{.steps.analysis.output}}): " +
					"position {{.inputs.topic}} on reliability and ease of use, lead with an " +
					"outcome-focused message, prioritize channels where the segments already are, " +
					"and run a staged launch campaign.",
			},
			{
				id:    "tactics",
				name:  "Tactical Planning",
				agent: "Marketing Tactician",
				output: "Tactics for the strategy ({{.steps.strategy.output}}): " +
					"weekly comparison and how-to content, short-form social clips, paid search on " +
					"high-intent terms, a launch webinar, and a referral promotion for the first " +
					"cohort of customers.",
			},
			{
				id:    "metrics",
				name:  "Success Metrics",
				agent: "Marketing Analyst",
				output: "Metrics for the plan ({{.steps.tactics.output}}): " +
					"qualified-lead volume and conversion rate by channel, cost per acquisition " +
					"against target, activation within 14 days, and quarterly review gates with " +
					"kill-or-scale criteria per tactic.",
			},
		},
	},
	{
		key:       "research",
		title:     "Research Paper Outline",
		topicHint: "research topic, e.g. 'Climate Change Impact'",
		phases: []phase{
			{
				id:    "topic",
				name:  "Topic Research",
				agent: "Research Specialist",
				output: "Scope of research on {{.inputs.topic}}: the central questions, the gap " +
					"left by existing literature, and the significance of new findings for both " +
					"theory and practice.",
				tools: []workflow.ToolDefinition{
					{Name: "literature_search", Calls: 2, Input: "recent publications"},
				},
			},
			{
				id:    "outline",
				name:  "Outline Structure",
				agent: "Academic Writer",
				output: "Paper outline from the scoping work ({{.steps.topic.output}}): " +
					"abstract, introduction motivating the gap, literature review, methodology, " +
					"results, discussion of implications, and conclusion with future work.",
			},
			{
				id:    "content",
				name:  "Content Planning",
				agent: "Content Planner",
				output: "Section content for the outline ({{.steps.outline.output}}): " +
					"key points per section, the datasets and instruments required, the analysis " +
					"methods to apply, and the contributions each section must establish.",
			},
			{
				id:    "refine",
				name:  "Review & Refinement",
				agent: "Academic Reviewer",
				output: "Reviewer notes on the plan ({{.steps.content.output}}): " +
					"tighten the research questions, pre-register the analysis to strengthen " +
					"rigor, and add a limitations section addressing external validity.",
			},
		},
	},
	{
		key:       "architecture",
		title:     "Software Architecture Planning",
		topicHint: "software project, e.g. 'E-commerce Platform'",
		phases: []phase{
			{
				id:    "requirements",
				name:  "Requirements Analysis",
				agent: "Systems Analyst",
				output: "Requirements for {{.inputs.topic}}: the functional surface, " +
					"non-functional targets for latency and availability, projected scale, and " +
					"the technical constraints the design must respect.",
			},
			{
				id:    "design",
				name:  "Architecture Design",
				agent: "Software Architect",
				output: "Architecture meeting the requirements ({{.steps.requirements.output}}): " +
					"service decomposition by domain, a proven technology stack, event-driven " +
					"integration between components, and clear ownership boundaries.",
				tools: []workflow.ToolDefinition{
					{Name: "diagram", Calls: 1, Input: "component diagram"},
				},
			},
			{
				id:    "plan",
				name:  "Technical Planning",
				agent: "Technical Lead",
				output: "Implementation plan for the design ({{.steps.design.output}}): " +
					"schema design per service, a versioned API contract, authentication and " +
					"audit controls, and a blue-green deployment strategy.",
			},
			{
				id:    "review",
				name:  "Architecture Review",
				agent: "Architecture Reviewer",
				output: "Review of the plan ({{.steps.plan.output}}): " +
					"reduce cross-service coupling in the checkout path, add load testing before " +
					"launch, and document failure modes per component. Main risk: shared-database " +
					"shortcuts under deadline pressure.",
			},
		},
	},
}

// Names returns the scenario keys in display order.
func Names() []string {
	names := make([]string, len(library))
	for i, s := range library {
		names[i] = s.key
	}
	return names
}

// List returns display information for every built-in scenario.
func List() []Info {
	infos := make([]Info, len(library))
	for i, s := range library {
		agents := make([]string, len(s.phases))
		for j, p := range s.phases {
			agents[j] = p.agent
		}
		infos[i] = Info{
			Key:       s.key,
			Title:     s.title,
			TopicHint: s.topicHint,
			Agents:    agents,
		}
	}
	return infos
}

// Get returns the workflow definition for a scenario key.
func Get(key string) (*workflow.Definition, error) {
	for _, s := range library {
		if s.key == key {
			return s.definition(), nil
		}
	}
	return nil, &errors.NotFoundError{Resource: "scenario", ID: key}
}

// definition lowers a scenario into a workflow definition. Phases chain
// linearly: each depends on the previous one and reads its output.
func (s scenario) definition() *workflow.Definition {
	def := &workflow.Definition{
		Name:        s.key,
		Description: s.title,
		Mode:        workflow.ModeDependency,
		Inputs: []workflow.InputDefinition{
			{Name: "topic", Description: s.topicHint},
		},
	}
	for i, p := range s.phases {
		sd := workflow.StepDefinition{
			ID:     p.id,
			Agent:  p.agent,
			Output: p.output,
			Tools:  p.tools,
		}
		if i > 0 {
			sd.DependsOn = []string{s.phases[i-1].id}
		}
		def.Steps = append(def.Steps, sd)
	}
	return def
}
