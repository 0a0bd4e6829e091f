package trip

import (
	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
)

// Stage identifiers. They are persisted in checkpoints, so renaming one
// strands sessions suspended at it.
const (
	StageCheckConstraints    = "check_constraints"
	StageGeocodeLocations    = "geocode_locations"
	StageTrafficQuery        = "traffic_query"
	StageSelectTransport     = "select_transport_by_llm"
	StageApprovalGate        = "transport_approval_gate"
	StageUserSelectTransport = "user_select_transport"
	StagePlanDay1            = "plan_day_1_by_llm"
	StageResearchMode        = "user_select_research_mode"
	StageCustomResearch      = "custom_research"
	StageAutoResearch        = "auto_research"
	StageSkipResearch        = "skip_research"
	StageGeocodeCompanies    = "geocode_companies"
	StagePlanDay23           = "plan_day_2_3_by_llm"
	StageBuildFinal          = "build_final_itinerary_and_report"
	StageRefine              = "user_refine_itinerary"
)

// GraphName labels the pipeline in traces and logs.
const GraphName = "tripflow"

// Pipeline is the compiled trip graph.
type Pipeline = flowgraph.CompiledGraph[plan.State, plan.Patch]

// Compile wires the stages:
//
//	check_constraints → geocode_locations → traffic_query → select_transport_by_llm
//	  → transport_approval_gate ⇒ plan_day_1_by_llm | user_select_transport
//	user_select_transport → plan_day_1_by_llm → user_select_research_mode
//	  ⇒ custom_research | auto_research | skip_research
//	custom_research, auto_research → geocode_companies → plan_day_2_3_by_llm
//	skip_research → plan_day_2_3_by_llm → build_final_itinerary_and_report
//	  → user_refine_itinerary ⇒ build_final_itinerary_and_report | END
func (p *Planner) Compile() (*Pipeline, error) {
	return flowgraph.NewGraph[plan.State, plan.Patch](plan.Merge).
		Named(GraphName).
		AddNode(StageCheckConstraints, p.checkConstraints).
		AddNode(StageGeocodeLocations, p.geocodeLocations).
		AddNode(StageTrafficQuery, p.trafficQuery).
		AddNode(StageSelectTransport, p.selectTransport).
		AddNode(StageApprovalGate, p.approvalGate).
		AddNode(StageUserSelectTransport, p.userSelectTransport).
		AddNode(StagePlanDay1, p.planDay1).
		AddNode(StageResearchMode, p.researchMode).
		AddNode(StageCustomResearch, p.customResearch).
		AddNode(StageAutoResearch, p.autoResearch).
		AddNode(StageSkipResearch, p.skipResearch).
		AddNode(StageGeocodeCompanies, p.geocodeCompanies).
		AddNode(StagePlanDay23, p.planDay23).
		AddNode(StageBuildFinal, p.buildFinal).
		AddNode(StageRefine, p.userRefine).
		AddEdge(StageCheckConstraints, StageGeocodeLocations).
		AddEdge(StageGeocodeLocations, StageTrafficQuery).
		AddEdge(StageTrafficQuery, StageSelectTransport).
		AddEdge(StageSelectTransport, StageApprovalGate).
		AddBranches(StageApprovalGate, StagePlanDay1, StageUserSelectTransport).
		AddEdge(StageUserSelectTransport, StagePlanDay1).
		AddEdge(StagePlanDay1, StageResearchMode).
		AddBranches(StageResearchMode, StageCustomResearch, StageAutoResearch, StageSkipResearch).
		AddEdge(StageCustomResearch, StageGeocodeCompanies).
		AddEdge(StageAutoResearch, StageGeocodeCompanies).
		AddEdge(StageGeocodeCompanies, StagePlanDay23).
		AddEdge(StageSkipResearch, StagePlanDay23).
		AddEdge(StagePlanDay23, StageBuildFinal).
		AddEdge(StageBuildFinal, StageRefine).
		AddBranches(StageRefine, StageBuildFinal, flowgraph.END).
		SetEntry(StageCheckConstraints).
		Compile()
}
