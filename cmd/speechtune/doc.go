// Command speechtune is the fine-tuning CLI: it trains parameter-efficient
// adapters on a frozen speech model, evaluates checkpoints with corpus-level
// WER and BLEU, and keeps a local history of runs.
package main
