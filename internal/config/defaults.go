package config

// defaultRules is the shipped starter configuration: one current-account
// layout resolving the standard reconciliation fields. Intended to be copied
// by `ledgervet config init` and edited per institution.
const defaultRules = `# ledgervet extraction rules.
#
# Identification rules are evaluated in order; the first match wins, so list
# more specific rules before generic ones.
rules:
  - id: example_bank_current
    company: example_bank
    account_type: current
    template: example_bank_current_v1
    name: Example Bank current account
    markers:
      - AccountNumber
      - Sort Code
    match_policy: ANY
    target_page: 1
    normalize_whitespace: true

templates:
  example_bank_current_v1:
    fields:
      - name: account_name
        ref_type: ROW_SEARCH
        candidates:
          - { table: 1, row: 0, cell: 0, pattern: '[A-Za-z]+' }
      - name: sort_code
        ref_type: ROW_SEARCH
        candidates:
          - { table: 1, row: 8, cell: 0, pattern: '\d{2}-\d{2}-\d{2}' }
      - name: account_number
        ref_type: ROW_SEARCH
        candidates:
          - { table: 1, row: 8, cell: 0, pattern: '\b\d{8}\b' }
      - name: statement_date
        ref_type: ROW_SEARCH
        candidates:
          - { table: 1, row: 1, cell: 0, pattern: '\d{1,2} \w+ \d{4}' }
      - name: opening_balance
        ref_type: ROW_SEARCH
        numeric: true
        debit_suffix: D
        candidates:
          - { table: 0, row: 7, cell: 0, pattern: '£?[\d,]+\.\d{2}' }
        substitutions:
          - { pattern: '£', replacement: '' }
          - { pattern: ',', replacement: '' }
      - name: payments_in
        ref_type: ROW_SEARCH
        numeric: true
        candidates:
          - { table: 0, row: 8, cell: 0, pattern: '£?[\d,]+\.\d{2}' }
        substitutions:
          - { pattern: '£', replacement: '' }
          - { pattern: ',', replacement: '' }
      - name: payments_out
        ref_type: ROW_SEARCH
        numeric: true
        candidates:
          - { table: 0, row: 9, cell: 0, pattern: '£?[\d,]+\.\d{2}' }
        substitutions:
          - { pattern: '£', replacement: '' }
          - { pattern: ',', replacement: '' }
      - name: closing_balance
        ref_type: ROW_SEARCH
        numeric: true
        debit_suffix: D
        candidates:
          - { table: 0, row: 10, cell: 0, pattern: '£?[\d,]+\.\d{2}' }
        substitutions:
          - { pattern: '£', replacement: '' }
          - { pattern: ',', replacement: '' }
`
