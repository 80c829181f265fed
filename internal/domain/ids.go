package domain

// ProposalRef is the external-facing (encrypted) reference key for a proposal
// schedule. It is only usable on public orchestrator endpoints and must be
// resolved to a ProposalID before hitting internal APIs.
type ProposalRef string

// ProposalID is the canonical internal proposal identifier, obtained by
// resolving a ProposalRef through the identity service. The two identifier
// spaces are not interchangeable.
type ProposalID string

// ProposalTable is the entity-table scope the identity service resolves
// proposal references against.
const ProposalTable = "auto_proposal"

func (r ProposalRef) IsZero() bool { return r == "" }

func (id ProposalID) IsZero() bool { return id == "" }
